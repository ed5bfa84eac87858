package api

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/service"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
)

const (
	maxUploadMemory = 10 << 20

	// Form field names accepted for the voice sample.
	fieldVoiceSample = "voiceSample"
	fieldVoiceFile   = "voice_file"
)

type CharacterHandler struct {
	characters *service.CharacterService
	users      *service.UserService
	logger     *logger.Logger
}

func NewCharacterHandler(characters *service.CharacterService, users *service.UserService, logger *logger.Logger) *CharacterHandler {
	return &CharacterHandler{characters: characters, users: users, logger: logger}
}

// ListCharacters returns the roster of the active user (or the guest profile)
func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	user, err := h.users.Current(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	list, err := h.characters.List(c.Request.Context(), models.OwnerID(user))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": list})
}

func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	character, err := h.characters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// CreateCharacter accepts JSON or a multipart form with an optional voice sample
func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	var in models.CharacterInput
	var sample *ai.FilePart

	if isMultipart(c) {
		if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
			badRequest(c, err)
			return
		}
		in = models.CharacterInput{
			Name:         c.PostForm("name"),
			Relationship: c.PostForm("relationship"),
			Personality:  c.PostForm("personality"),
			Topics:       c.PostForm("topics"),
		}
		file, header, err := voiceFile(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		if file != nil {
			defer file.Close()
			sample = &ai.FilePart{Filename: header.Filename, Content: file}
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Current(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	character, err := h.characters.Create(c.Request.Context(), user, in, sample)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, character)
}

// UpdateCharacter overwrites the editable fields
func (h *CharacterHandler) UpdateCharacter(c *gin.Context) {
	var in models.CharacterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	character, err := h.characters.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// DeleteCharacter removes a character together with its chat history
func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	if err := h.characters.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadVoice sends a voice sample for an existing character
func (h *CharacterHandler) UploadVoice(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		badRequest(c, err)
		return
	}
	file, header, err := voiceFile(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if file == nil {
		_ = c.Error(apperrors.NewValidationError(apperrors.CodeValidation, "A voice sample file is required"))
		return
	}
	defer file.Close()

	character, err := h.characters.UploadVoice(c.Request.Context(), c.Param("id"), ai.FilePart{Filename: header.Filename, Content: file})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// StartChat records the character the next chat session opens with
func (h *CharacterHandler) StartChat(c *gin.Context) {
	if err := h.characters.SetPendingSelection(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"characterId": c.Param("id")})
}

// EditCharacter records the character the edit form opens with
func (h *CharacterHandler) EditCharacter(c *gin.Context) {
	if err := h.characters.SetPendingEdit(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"characterId": c.Param("id")})
}

// PendingEdit returns and clears the character waiting to be edited
func (h *CharacterHandler) PendingEdit(c *gin.Context) {
	id, found, err := h.characters.TakePendingEdit(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		c.Status(http.StatusNoContent)
		return
	}
	character, err := h.characters.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, character)
}

func isMultipart(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Content-Type"), "multipart/form-data")
}

// voiceFile returns the uploaded sample, or nil when none was attached.
func voiceFile(c *gin.Context) (multipart.File, *multipart.FileHeader, error) {
	for _, field := range []string{fieldVoiceSample, fieldVoiceFile} {
		file, header, err := c.Request.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		if err != http.ErrMissingFile {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}
