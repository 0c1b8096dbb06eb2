// Package api defines the entities exchanged between the freightview
// server, its client, and the dashboard.
//
// Shapes follow the server's JSON schema. Fields the dashboard does not
// read are omitted.
package api

import "time"

// ObjectMeta identifies a stored object within a project.
type ObjectMeta struct {
	Name              string    `json:"name"`
	UID               string    `json:"uid"`
	Namespace         string    `json:"namespace,omitempty"`
	CreationTimestamp time.Time `json:"creationTimestamp"`
}

// Chart references a packaged chart by registry and version.
type Chart struct {
	RegistryURL string `json:"registryURL"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version"`
}

// Freight is a versioned bundle of content promoted between stages.
type Freight struct {
	ID     string  `json:"id"`
	Charts []Chart `json:"charts,omitempty"`
}

// StageStatus holds the freight a stage currently runs and what it ran
// before. History[0] is the most recent entry.
type StageStatus struct {
	CurrentFreight *Freight  `json:"currentFreight,omitempty"`
	History        []Freight `json:"history,omitempty"`
}

// Stage is a named deployment target.
type Stage struct {
	Metadata ObjectMeta  `json:"metadata"`
	Status   StageStatus `json:"status"`
}

// PromotionPhase is the lifecycle phase of a Promotion.
type PromotionPhase string

const (
	PhasePending   PromotionPhase = "Pending"
	PhaseRunning   PromotionPhase = "Running"
	PhaseSucceeded PromotionPhase = "Succeeded"
	PhaseErrored   PromotionPhase = "Errored"
)

// Known reports whether p is one of the defined phases.
func (p PromotionPhase) Known() bool {
	switch p {
	case PhasePending, PhaseRunning, PhaseSucceeded, PhaseErrored:
		return true
	}
	return false
}

// PromotionSpec names the stage and the freight being moved into it.
type PromotionSpec struct {
	Stage   string `json:"stage"`
	Freight string `json:"freight"`
}

// PromotionStatus is the observed state of a promotion.
type PromotionStatus struct {
	Phase PromotionPhase `json:"phase,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Promotion records an attempt to move freight into a stage.
type Promotion struct {
	Metadata ObjectMeta      `json:"metadata"`
	Spec     PromotionSpec   `json:"spec"`
	Status   PromotionStatus `json:"status"`
}

// EventType is the kind of change carried by a PromotionEvent.
type EventType string

const (
	EventAdded    EventType = "ADDED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
)

// PromotionEvent is one entry of the promotion watch stream. Promotion is
// the full current representation of the affected object.
type PromotionEvent struct {
	Type      EventType  `json:"type"`
	Promotion *Promotion `json:"promotion"`
}

// ListStagesResponse is returned by the stage list endpoint.
type ListStagesResponse struct {
	Stages []Stage `json:"stages"`
}

// ListPromotionsResponse is returned by the promotion list endpoint.
type ListPromotionsResponse struct {
	Promotions []Promotion `json:"promotions"`
}

// CreatePromotionRequest is the body of a promotion create call.
type CreatePromotionRequest struct {
	Name    string `json:"name,omitempty"`
	Freight string `json:"freight"`
}

// Health is returned by the health endpoint.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
