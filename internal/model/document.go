package model

import (
	"encoding/json"
	"fmt"
)

// Decode fills v (a pointer to a struct with json tags) from the document
// fields.
func (d Document) Decode(v any) error {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", d.Collection, d.ID, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Fields converts a json-tagged struct into a document field map.
func Fields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserFromDoc decodes a users document.
func UserFromDoc(d Document) (User, error) {
	var u User
	err := d.Decode(&u)
	return u, err
}

// PostFromDoc decodes a posts document; ID and CreatedAt come from the
// document metadata.
func PostFromDoc(d Document) (Post, error) {
	var p Post
	if err := d.Decode(&p); err != nil {
		return Post{}, err
	}
	p.ID = d.ID
	p.CreatedAt = d.CreatedAt
	return p, nil
}

// HabitFromDoc decodes a Habit document. Missing tasks decode as an empty list.
func HabitFromDoc(d Document) (Habit, error) {
	var h Habit
	if err := d.Decode(&h); err != nil {
		return Habit{}, err
	}
	if h.Tasks == nil {
		h.Tasks = []string{}
	}
	return h, nil
}
