package domain

type Message struct {
	ID        int
	ChatID    int64
	Username  string
	Text      string
	ImageURL  string
	ImageName string
}

type Action string

const (
	Typing          Action = "typing"
	SendingDocument Action = "upload_document"
)

// OutputFilename is the name a formatted signature is delivered under.
const OutputFilename = "formatted_signature.jpg"
