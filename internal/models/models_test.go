package models

import (
	"testing"

	apperrors "voice-beyond/companion/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestCharacterInputValidate(t *testing.T) {
	err := CharacterInput{Name: " ", Relationship: "Mother", Personality: "warm"}.Validate()
	assert.True(t, apperrors.IsValidation(err))

	appErr, _ := apperrors.As(err)
	assert.Equal(t, map[string]any{"missing": []string{"name"}}, appErr.Details)

	assert.NoError(t, CharacterInput{Name: "Mom", Relationship: "Mother", Personality: "warm"}.Validate())
}

func TestOwnerID(t *testing.T) {
	assert.Equal(t, GuestUserID, OwnerID(nil))
	assert.Equal(t, "user_1", OwnerID(&User{ID: "user_1"}))
}

func TestTranscriptCloneIsIndependent(t *testing.T) {
	orig := Transcript{NewUserMessage("hi")}
	cp := orig.Clone()
	cp[0].Content = "changed"
	assert.Equal(t, "hi", orig[0].Content)
	assert.NotNil(t, Transcript(nil).Clone())
}
