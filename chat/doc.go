// Package chat hosts the Twitch chat bot.
//
// Bot connects to Twitch IRC with a bot account, joins the configured
// channels and hands every message to its plugins. Each message runs on its
// own goroutine, bounded by a fixed number of handler slots; when all slots
// are busy the message is dropped rather than queued. A plugin that has
// nothing to say stays silent, and a plugin that panics is recovered and
// counted without affecting the others.
//
// The bot never replies to its own messages.
package chat
