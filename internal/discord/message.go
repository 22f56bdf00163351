// Package discord talks to Discord: outbound slash-command payloads against
// the interactions API, and the inbound gateway websocket delivering the bot's
// chat messages.
package discord

// Message is the event shape handed to the correlation engine, for both
// MESSAGE_CREATE and MESSAGE_UPDATE gateway dispatches.
type Message struct {
	ID                string       `json:"id"`
	ChannelID         string       `json:"channel_id"`
	Content           string       `json:"content"`
	Author            Author       `json:"author"`
	Embeds            []Embed      `json:"embeds"`
	Attachments       []Attachment `json:"attachments"`
	Interaction       *Interaction `json:"interaction"`
	ReferencedMessage *Message     `json:"referenced_message"`
}

type Author struct {
	Username string `json:"username"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Footer      *EmbedFooter `json:"footer"`
	Image       *EmbedImage  `json:"image"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type Attachment struct {
	URL string `json:"url"`
}

type Interaction struct {
	Name string `json:"name"`
}
