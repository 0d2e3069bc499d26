package llm

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockTypeText  BlockType = "text"
	BlockTypeImage BlockType = "image"
	BlockTypeFile  BlockType = "file"
)

// ImageRef points at an image by http(s) URL or data URL.
type ImageRef struct {
	URL string `json:"url"`
}

// FileRef is an inline file attachment encoded as a data URL.
type FileRef struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	DataURL  string `json:"data_url"`
}

// ContentBlock is one typed part of a multimodal message. Exactly one of
// Text, Image, File is meaningful, selected by Type.
type ContentBlock struct {
	Type  BlockType `json:"type"`
	Text  string    `json:"text,omitempty"`
	Image *ImageRef `json:"image,omitempty"`
	File  *FileRef  `json:"file,omitempty"`
}

// Message is one turn of a conversation.
//
// Content carries plain text. Blocks, when non-empty, carry the ordered
// multimodal parts and take precedence over Content on the wire. Data holds
// the parsed structured payload when the response was requested as JSON.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Stats   Stats          `json:"stats"`
	Meta    Metadata       `json:"meta"`
}

// NewMessage creates a message with the given role and text content.
func NewMessage(role Role, content string) *Message {
	return &Message{
		Role:    role,
		Content: content,
		Meta:    NewMetadata(),
	}
}

// NewSystemMessage creates a system message with text content.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a user message with text content.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message with text content.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// NewFileMessage creates a user message whose content is a text block followed
// by one block per attachment. Attachments with an image MIME type become image
// blocks (the data URL is sent as the image source); everything else becomes a
// file block. The block list is computed once here; build a new message to
// change text or attachments.
func NewFileMessage(text string, files ...FileRef) *Message {
	blocks := make([]ContentBlock, 0, len(files)+1)
	if text != "" {
		blocks = append(blocks, ContentBlock{Type: BlockTypeText, Text: text})
	}
	for _, f := range files {
		if strings.HasPrefix(f.MIMEType, "image/") {
			blocks = append(blocks, ContentBlock{
				Type:  BlockTypeImage,
				Image: &ImageRef{URL: f.DataURL},
			})
			continue
		}
		file := f
		blocks = append(blocks, ContentBlock{Type: BlockTypeFile, File: &file})
	}
	return &Message{
		Role:    RoleUser,
		Content: text,
		Blocks:  blocks,
		Meta:    NewMetadata(),
	}
}

// Text returns the plain text of the message: Content when set, otherwise the
// concatenated text blocks.
func (m *Message) Text() string {
	if m.Content != "" || len(m.Blocks) == 0 {
		return m.Content
	}
	var b strings.Builder
	for _, block := range m.Blocks {
		if block.Type == BlockTypeText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
