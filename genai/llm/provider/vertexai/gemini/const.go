package gemini

const geminiEndpoint = "https://generativelanguage.googleapis.com/%v/models"

// roles used by the Gemini content API.
const (
	roleUser  = "user"
	roleModel = "model"
)
