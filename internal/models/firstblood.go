package models

import (
	"bytes"
	"errors"
	"strconv"
	"time"
)

// FirstBlood is one first-blood record: the first solve of a challenge
// within an event. The (EventID, ChallengeID) pair is unique; WasSent is the
// only field that changes after creation.
type FirstBlood struct {
	ID                  int64     `json:"id"`
	Date                time.Time `json:"date"`
	EventID             int64     `json:"event_id"`
	ChallengeID         int64     `json:"challenge_id"`
	ChallengeName       string    `json:"challenge_name"`
	ChallengeCategory   string    `json:"challenge_category"`
	ChallengeDifficulty string    `json:"challenge_difficulty"`
	Username            string    `json:"username"`
	WasSent             bool      `json:"was_sent"`
}

// CreateRequest is the POST /firstbloods/add/ payload. EventID and
// ChallengeID are pointers so "absent" can be told apart from zero.
type CreateRequest struct {
	Date                *FlexTime `json:"date,omitempty"`
	Username            string    `json:"username"`
	EventID             *int64    `json:"event_id"`
	ChallengeID         *int64    `json:"challenge_id"`
	ChallengeName       string    `json:"challenge_name,omitempty"`
	ChallengeCategory   string    `json:"challenge_category,omitempty"`
	ChallengeDifficulty string    `json:"challenge_difficulty,omitempty"`
}

// Validate checks required fields per contract.
func (r CreateRequest) Validate() error {
	if r.Username == "" {
		return errors.New("username required")
	}
	if r.EventID == nil {
		return errors.New("event_id required")
	}
	if r.ChallengeID == nil {
		return errors.New("challenge_id required")
	}
	return nil
}

// Record builds the FirstBlood to be stored, stamping now (UTC) when the
// caller supplied no date.
func (r CreateRequest) Record(now time.Time) FirstBlood {
	date := now.UTC()
	if r.Date != nil {
		date = r.Date.Time().UTC()
	}
	return FirstBlood{
		Date:                date,
		EventID:             *r.EventID,
		ChallengeID:         *r.ChallengeID,
		ChallengeName:       r.ChallengeName,
		ChallengeCategory:   r.ChallengeCategory,
		ChallengeDifficulty: r.ChallengeDifficulty,
		Username:            r.Username,
	}
}

// timeLayouts are the accepted string forms for dates and time filters.
// The space-separated layout is the documented filter format.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTime parses a timestamp in any accepted layout, normalized to UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized time format: " + s)
}

// FlexTime is a timestamp that unmarshals from either a quoted timestamp
// string or a bare Unix epoch integer (seconds).
type FlexTime struct {
	t time.Time
}

func NewFlexTime(t time.Time) *FlexTime { return &FlexTime{t: t.UTC()} }

func (f FlexTime) Time() time.Time { return f.t }

func (f FlexTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(f.t.UTC().Format(time.RFC3339))), nil
}

func (f *FlexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		t, err := ParseTime(s)
		if err != nil {
			return err
		}
		f.t = t
		return nil
	}
	epoch, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return errors.New("date must be a timestamp string or unix epoch integer")
	}
	f.t = time.Unix(epoch, 0).UTC()
	return nil
}
