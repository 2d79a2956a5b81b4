// Package logminer recovers counts and entity sets from the bot's activity log.
//
// Every fact is a regular expression anchored on the line prefix
// "YYYY-MM-DD HH:MM:SS,mmm:LEVEL:source: " followed by a literal event marker.
// Matches are counted across the whole text without overlap. Nothing here
// fails: an unmatched pattern or an empty log counts as zero.
package logminer

import (
	"regexp"
	"sort"

	"github.com/i474232898/snow-report/internal/chatlog"
)

const (
	timestampPattern = `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}`
	handlePattern    = `[a-zA-Z0-9]{2,32}#\d{4}`

	DefaultLevel     = "DEBUG"
	DefaultSource    = "snowbot"
	DefaultBotHandle = "SnowBot#0001"
)

var (
	handleRe     = regexp.MustCompile(handlePattern)
	fullHandleRe = regexp.MustCompile(`^` + handlePattern + `$`)
	helpRe       = regexp.MustCompile(regexp.QuoteMeta(chatlog.HelpFooter))
)

// Miner holds the prefix every event line is expected to carry.
type Miner struct {
	prefix    string
	botHandle string

	messages     *regexp.Regexp
	hello        *regexp.Regexp
	bye          *regexp.Regexp
	memberJoin   *regexp.Regexp
	botMessages  *regexp.Regexp
	acceptFail   *regexp.Regexp
	acceptTotal  *regexp.Regexp
	acceptDirect *regexp.Regexp
}

// New builds a Miner for lines written at level by source, where botHandle is
// the bot's own chat handle. Empty arguments fall back to the defaults.
func New(level, source, botHandle string) *Miner {
	if level == "" {
		level = DefaultLevel
	}
	if source == "" {
		source = DefaultSource
	}
	if botHandle == "" {
		botHandle = DefaultBotHandle
	}

	m := &Miner{
		prefix:    timestampPattern + ":" + regexp.QuoteMeta(level) + ":" + regexp.QuoteMeta(source) + ": ",
		botHandle: botHandle,
	}

	acceptCmd := regexp.QuoteMeta(chatlog.Handler(chatlog.CmdAccept) + `: Command ("!` + chatlog.CmdAccept + `"): Author (`)
	acceptTotal := acceptCmd + handlePattern + `\)`

	m.messages = m.compile(regexp.QuoteMeta(chatlog.DetectedMessageBy))
	m.hello = m.compile(regexp.QuoteMeta(chatlog.MessageContent(chatlog.HelloContent)))
	m.bye = m.compile(regexp.QuoteMeta(chatlog.MessageContent(chatlog.ByeContent)))
	m.memberJoin = m.compile(regexp.QuoteMeta(chatlog.OnMemberJoin + ":"))
	m.botMessages = m.compile(regexp.QuoteMeta(chatlog.DetectedMessageBy + botHandle + ":"))
	m.acceptFail = m.compile(regexp.QuoteMeta(chatlog.Message(botHandle, chatlog.AcceptRulesReply)))
	m.acceptTotal = m.compile(acceptTotal)
	m.acceptDirect = m.compile(acceptTotal + regexp.QuoteMeta(`: Channel: (`+chatlog.DirectMessagePrefix) + handlePattern + `\)`)
	return m
}

// Default returns a Miner for the bot's default logger settings.
func Default() *Miner {
	return New("", "", "")
}

func (m *Miner) compile(marker string) *regexp.Regexp {
	return regexp.MustCompile(m.prefix + marker)
}

func count(re *regexp.Regexp, log string) int {
	if log == "" {
		return 0
	}
	return len(re.FindAllStringIndex(log, -1))
}

// ValidHandle reports whether s is a well-formed chat handle, e.g. "jane#1234".
func ValidHandle(s string) bool {
	return fullHandleRe.MatchString(s)
}

// MessageCount is the number of inbound messages the bot saw.
func (m *Miner) MessageCount(log string) int {
	return count(m.messages, log)
}

// UserMessageCount is the number of messages sent by author. Malformed handles count zero.
func (m *Miner) UserMessageCount(log, author string) int {
	if !ValidHandle(author) {
		return 0
	}
	return count(m.compile(regexp.QuoteMeta(chatlog.DetectedMessageBy+author+":")), log)
}

// BotMessageCount is the number of messages the bot itself sent.
func (m *Miner) BotMessageCount(log string) int {
	return count(m.botMessages, log)
}

// CommandCount is the number of invocations of command, with or without arguments.
func (m *Miner) CommandCount(log, command string) int {
	re := m.compile(regexp.QuoteMeta(chatlog.Handler(command)+`: Command ("!`+command) + `[ "]`)
	return count(re, log)
}

// CommandCounts returns CommandCount for every recognized command.
func (m *Miner) CommandCounts(log string) map[string]int {
	out := make(map[string]int, len(chatlog.Commands))
	for _, cmd := range chatlog.Commands {
		out[cmd] = m.CommandCount(log, cmd)
	}
	return out
}

// HelloCount is the number of "Hello" greetings answered.
func (m *Miner) HelloCount(log string) int {
	return count(m.hello, log)
}

// ByeCount is the number of "Bye" greetings answered.
func (m *Miner) ByeCount(log string) int {
	return count(m.bye, log)
}

// AcceptTotalCount is the number of !accept invocations from any channel.
func (m *Miner) AcceptTotalCount(log string) int {
	return count(m.acceptTotal, log)
}

// AcceptSuccessCount is the number of !accept invocations sent by direct message.
func (m *Miner) AcceptSuccessCount(log string) int {
	return count(m.acceptDirect, log)
}

// AcceptWrongChannelCount is the number of !accept invocations sent outside a
// direct message: every invocation minus the direct ones.
func (m *Miner) AcceptWrongChannelCount(log string) int {
	return m.AcceptTotalCount(log) - m.AcceptSuccessCount(log)
}

// AcceptFailCount is the number of times the bot told a non-member to !accept the rules.
func (m *Miner) AcceptFailCount(log string) int {
	return count(m.acceptFail, log)
}

// ResortQueryCount is the number of times snow data for key was requested,
// either directly with !checksnow or as part of a country report.
func (m *Miner) ResortQueryCount(log, key string) int {
	if key == "" {
		return 0
	}
	k := regexp.QuoteMeta(key) + `\b`
	patterns := []string{
		regexp.QuoteMeta(chatlog.SendingResort(chatlog.CmdCanadaSnow, "")) + k,
		regexp.QuoteMeta(chatlog.SendingResort(chatlog.CmdUSASnow, "")) + k,
		regexp.QuoteMeta(chatlog.Handler(chatlog.CmdCheckSnow)+`: Command ("!`+chatlog.CmdCheckSnow+` `) + k,
	}
	var total int
	for _, p := range patterns {
		total += count(m.compile(p), log)
	}
	return total
}

// MemberJoinCount is the number of members that joined the server.
func (m *Miner) MemberJoinCount(log string) int {
	return count(m.memberJoin, log)
}

// HelpCount is the number of help replies sent. The footer is matched anywhere
// in the text since it is part of a multi-line reply.
func (m *Miner) HelpCount(log string) int {
	return count(helpRe, log)
}

// ActiveUsers returns every distinct chat handle mentioned in the log, sorted.
func (m *Miner) ActiveUsers(log string) []string {
	seen := make(map[string]struct{})
	for _, h := range handleRe.FindAllString(log, -1) {
		seen[h] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for h := range seen {
		users = append(users, h)
	}
	sort.Strings(users)
	return users
}
