package dsa

import "time"

// Notification is a fabric-wide event delivered to every switch of a
// tree.
type Notification interface {
	isNotification()
}

// AgeingTimeNotification asks switches to change their FDB ageing time.
type AgeingTimeNotification struct {
	AgeingTime time.Duration
}

func (AgeingTimeNotification) isNotification() {}

// FDBNotification adds or removes a forwarding entry on behalf of the
// member and port that own it.
type FDBNotification struct {
	Member uint32
	Port   int
	Addr   [6]byte
	VID    uint16
	Delete bool
}

func (FDBNotification) isNotification() {}
