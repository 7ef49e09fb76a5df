// Package oauthstate stores the transient state of in-flight OAuth logins,
// keyed by the state parameter sent to the provider.
package oauthstate

import "time"

type FlowState struct {
	Provider  string
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, flowState *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
}
