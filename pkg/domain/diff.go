package domain

import (
	"encoding/json"
	"reflect"
)

// SessionDiff represents the changes between two sessions.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// ConversationID is always present to identify the target.
	ConversationID string `json:"conversation_id"`

	Stage *Stage `json:"stage,omitempty"`

	// Record contains only changed, added or cleared application fields.
	// For cleared fields, the key is present with a nil value.
	Record map[string]any `json:"loan_application,omitempty"`

	History *HistoryDelta `json:"history,omitempty"`

	Ended *bool `json:"conversation_ended,omitempty"`

	// PendingChanged is set when an EMI adjustment was offered or resolved.
	PendingChanged bool `json:"pending_changed,omitempty"`
}

// HistoryDelta represents messages appended to the history.
type HistoryDelta struct {
	Appended []Message `json:"appended"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession (initial load).
// It returns nil when nothing changed.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{ConversationID: newSession.ID}

	if oldSession == nil || oldSession.Stage != newSession.Stage {
		stage := newSession.Stage
		diff.Stage = &stage
	}
	if oldSession == nil {
		if newSession.ConversationEnded {
			diff.Ended = &newSession.ConversationEnded
		}
	} else if oldSession.ConversationEnded != newSession.ConversationEnded {
		diff.Ended = &newSession.ConversationEnded
	}

	var oldRecord *ApplicationRecord
	var oldPending *EMIAdjustment
	if oldSession != nil {
		oldRecord = &oldSession.Record
		oldPending = oldSession.PendingEMIAdjustment
	}
	diff.Record = diffRecord(oldRecord, &newSession.Record)
	diff.History = diffHistory(oldSession, newSession)
	diff.PendingChanged = !reflect.DeepEqual(oldPending, newSession.PendingEMIAdjustment)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffRecord(old, new *ApplicationRecord) map[string]any {
	newFields := recordFields(new)
	delta := make(map[string]any)

	if old == nil {
		for k, v := range newFields {
			delta[k] = v
		}
	} else {
		oldFields := recordFields(old)
		for k, newVal := range newFields {
			if oldVal, exists := oldFields[k]; !exists || !reflect.DeepEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		for k := range oldFields {
			if _, exists := newFields[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// recordFields flattens a record into its JSON field map. Unset fields are omitted.
func recordFields(r *ApplicationRecord) map[string]any {
	out := map[string]any{}
	data, err := json.Marshal(r)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// diffHistory assumes standard append-only behavior for History.
func diffHistory(old, new *Session) *HistoryDelta {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return &HistoryDelta{Appended: new.History}
	}
	if len(new.History) > len(old.History) {
		return &HistoryDelta{Appended: new.History[len(old.History):]}
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.Stage == nil &&
		d.Ended == nil &&
		len(d.Record) == 0 &&
		d.History == nil &&
		!d.PendingChanged
}
