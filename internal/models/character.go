package models

import (
	"strings"
	"time"

	apperrors "voice-beyond/companion/pkg/errors"
)

// Character is a companion persona owned by a user (or the guest profile).
type Character struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Relationship  string    `json:"relationship"`
	Personality   string    `json:"personality"`
	Topics        string    `json:"topics"`
	HasVoiceModel bool      `json:"hasVoiceModel"`
	CreatedAt     time.Time `json:"createdAt"`
	UserID        string    `json:"userId"`
}

// CharacterInput holds the editable fields of a character.
type CharacterInput struct {
	Name         string `json:"name" form:"name"`
	Relationship string `json:"relationship" form:"relationship"`
	Personality  string `json:"personality" form:"personality"`
	Topics       string `json:"topics" form:"topics"`
}

// Normalize trims surrounding whitespace from every field.
func (in CharacterInput) Normalize() CharacterInput {
	return CharacterInput{
		Name:         strings.TrimSpace(in.Name),
		Relationship: strings.TrimSpace(in.Relationship),
		Personality:  strings.TrimSpace(in.Personality),
		Topics:       strings.TrimSpace(in.Topics),
	}
}

// Validate checks the required fields; topics are optional.
func (in CharacterInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Relationship) == "" {
		missing = append(missing, "relationship")
	}
	if strings.TrimSpace(in.Personality) == "" {
		missing = append(missing, "personality")
	}
	if len(missing) > 0 {
		return apperrors.ValidationWithDetails("Please fill in all required fields.", map[string]any{
			"missing": missing,
		})
	}
	return nil
}

// Apply overwrites the editable fields of c.
func (c *Character) Apply(in CharacterInput) {
	c.Name = in.Name
	c.Relationship = in.Relationship
	c.Personality = in.Personality
	c.Topics = in.Topics
}
