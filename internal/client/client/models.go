package client

import "time"

// UserRecord is the lending pool's view of an account. The service is
// authoritative; sessions only cache a copy.
type UserRecord struct {
	Principal      string
	Username       string
	Balance        float64
	Supplied       float64
	Borrowed       float64
	HealthFactor   float64
	CreatedAt      time.Time
	RecentActivity []Activity
}

// Activity is one entry of a user's recent activity log.
type Activity struct {
	Kind   string
	Asset  string
	Amount float64
	At     time.Time
}

// Position is a single earn or borrow position.
type Position struct {
	PoolID string
	Asset  string
	Amount float64
	APY    float64
}

type userRecordWire struct {
	Principal      string         `json:"principal"`
	Username       string         `json:"username"`
	Balance        float64        `json:"balance"`
	Supplied       float64        `json:"supplied"`
	Borrowed       float64        `json:"borrowed"`
	HealthFactor   float64        `json:"health_factor"`
	CreatedAt      float64        `json:"created_at"`
	RecentActivity []activityWire `json:"recent_activity,omitempty"`
}

type activityWire struct {
	Kind      string  `json:"kind"`
	Asset     string  `json:"asset"`
	Amount    float64 `json:"amount"`
	Timestamp float64 `json:"timestamp"`
}

type positionWire struct {
	PoolID string  `json:"pool_id"`
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
	APY    float64 `json:"apy"`
}

func unixSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(int64(s), 0).UTC()
}

func (w userRecordWire) model() UserRecord {
	u := UserRecord{
		Principal:    w.Principal,
		Username:     w.Username,
		Balance:      w.Balance,
		Supplied:     w.Supplied,
		Borrowed:     w.Borrowed,
		HealthFactor: w.HealthFactor,
		CreatedAt:    unixSeconds(w.CreatedAt),
	}
	for _, a := range w.RecentActivity {
		u.RecentActivity = append(u.RecentActivity, Activity{
			Kind:   a.Kind,
			Asset:  a.Asset,
			Amount: a.Amount,
			At:     unixSeconds(a.Timestamp),
		})
	}
	return u
}

func (w positionWire) model() Position {
	return Position(w)
}
