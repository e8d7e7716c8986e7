package model

// Channel identifies the acquisition path a record came from.
type Channel string

const (
	// ChannelAPI is the undocumented JSON search API.
	ChannelAPI Channel = "api"
	// ChannelHTML is the server-rendered search and detail pages.
	ChannelHTML Channel = "html"
)

// String returns the channel tag.
func (c Channel) String() string {
	return string(c)
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelAPI || c == ChannelHTML
}
