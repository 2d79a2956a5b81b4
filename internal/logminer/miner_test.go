package logminer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/snow-report/internal/chatlog"
)

const stamp = "2021-01-17 09:41:12,345"

func line(msg string) string {
	return stamp + ":DEBUG:snowbot: " + msg + "\n"
}

func logOf(msgs ...string) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(line(m))
	}
	return b.String()
}

func TestEmptyLog(t *testing.T) {
	m := Default()

	assert.Zero(t, m.MessageCount(""))
	assert.Zero(t, m.UserMessageCount("", "jane#1234"))
	assert.Zero(t, m.BotMessageCount(""))
	assert.Zero(t, m.CommandCount("", chatlog.CmdCheckSnow))
	assert.Zero(t, m.HelloCount(""))
	assert.Zero(t, m.ByeCount(""))
	assert.Zero(t, m.AcceptTotalCount(""))
	assert.Zero(t, m.AcceptSuccessCount(""))
	assert.Zero(t, m.AcceptWrongChannelCount(""))
	assert.Zero(t, m.AcceptFailCount(""))
	assert.Zero(t, m.ResortQueryCount("", "fernie"))
	assert.Zero(t, m.MemberJoinCount(""))
	assert.Zero(t, m.HelpCount(""))
	assert.Empty(t, m.ActiveUsers(""))

	for cmd, n := range m.CommandCounts("") {
		assert.Zero(t, n, cmd)
	}

	r := m.Report("")
	assert.Zero(t, r.Messages)
	assert.Equal(t, AcceptStats{}, r.Accept)
	assert.Empty(t, r.ActiveUsers)
}

func TestMessageCounts(t *testing.T) {
	m := Default()
	log := logOf(
		chatlog.Message("jane#1234", "Hello"),
		chatlog.MessageContent(chatlog.HelloContent),
		chatlog.Message("SnowBot#0001", "Hello World"),
		chatlog.Message("bob99#4321", "Bye"),
		chatlog.MessageContent(chatlog.ByeContent),
		chatlog.Message("jane#1234", "!resorts"),
	)

	assert.Equal(t, 4, m.MessageCount(log))
	assert.Equal(t, 2, m.UserMessageCount(log, "jane#1234"))
	assert.Equal(t, 1, m.UserMessageCount(log, "bob99#4321"))
	assert.Equal(t, 1, m.BotMessageCount(log))
	assert.Equal(t, 1, m.HelloCount(log))
	assert.Equal(t, 1, m.ByeCount(log))
}

func TestUserMessageCount_RejectsMalformedHandle(t *testing.T) {
	m := Default()
	log := logOf(chatlog.Message("j#1234", "hi"))

	assert.Zero(t, m.UserMessageCount(log, "j#1234"))
	assert.Zero(t, m.UserMessageCount(log, "jane"))
	assert.Zero(t, m.UserMessageCount(log, "jane#12"))
}

func TestPatternsRequirePrefix(t *testing.T) {
	m := Default()
	log := strings.Join([]string{
		stamp + ":INFO:snowbot: " + chatlog.Message("jane#1234", "hi"),
		stamp + ":DEBUG:otherbot: " + chatlog.Message("jane#1234", "hi"),
		"2021-01-17 09:41:12:DEBUG:snowbot: " + chatlog.Message("jane#1234", "hi"),
		chatlog.Message("jane#1234", "hi"),
	}, "\n")

	assert.Zero(t, m.MessageCount(log))
	assert.Equal(t, 1, New("INFO", "snowbot", "").MessageCount(log))
	assert.Equal(t, 1, New("DEBUG", "otherbot", "").MessageCount(log))
}

func TestCommandCount(t *testing.T) {
	m := Default()
	log := logOf(
		chatlog.Command(chatlog.CmdCheckTomorrow, []string{"fernie"}, "jane#1234", "general"),
		chatlog.Command(chatlog.CmdCheckTomorrow, []string{"whistler"}, "bob99#4321", "general"),
		chatlog.Command(chatlog.CmdCheckTomorrowTemp, []string{"fernie"}, "jane#1234", "general"),
		chatlog.Command(chatlog.CmdResorts, nil, "jane#1234", "general"),
		chatlog.Command(chatlog.CmdUSASnow, nil, "jane#1234", "general"),
		chatlog.Command(chatlog.CmdCanadaSnow, nil, "jane#1234", "general"),
	)

	assert.Equal(t, 2, m.CommandCount(log, chatlog.CmdCheckTomorrow))
	assert.Equal(t, 1, m.CommandCount(log, chatlog.CmdCheckTomorrowTemp))
	assert.Equal(t, 1, m.CommandCount(log, chatlog.CmdResorts))
	assert.Equal(t, 1, m.CommandCount(log, chatlog.CmdUSASnow))
	assert.Equal(t, 1, m.CommandCount(log, chatlog.CmdCanadaSnow))
	assert.Zero(t, m.CommandCount(log, chatlog.CmdServer))

	counts := m.CommandCounts(log)
	assert.Len(t, counts, len(chatlog.Commands))
	assert.Equal(t, 2, counts[chatlog.CmdCheckTomorrow])
}

func TestAcceptCounts(t *testing.T) {
	m := Default()
	var msgs []string
	for _, u := range []string{"jane#1234", "bob99#4321", "carol#0007"} {
		msgs = append(msgs, chatlog.Command(chatlog.CmdAccept, nil, u, chatlog.DirectChannel(u)))
	}
	for _, u := range []string{"dave#1111", "erin#2222"} {
		msgs = append(msgs, chatlog.Command(chatlog.CmdAccept, nil, u, "general"))
	}
	msgs = append(msgs, chatlog.Message(DefaultBotHandle, chatlog.AcceptRulesReply))
	log := logOf(msgs...)

	assert.Equal(t, 5, m.AcceptTotalCount(log))
	assert.Equal(t, 3, m.AcceptSuccessCount(log))
	assert.Equal(t, 2, m.AcceptWrongChannelCount(log))
	assert.Equal(t, 1, m.AcceptFailCount(log))

	r := m.Report(log)
	assert.Equal(t, AcceptStats{Total: 5, Success: 3, WrongChannel: 2, Fail: 1}, r.Accept)
}

func TestResortQueryCount(t *testing.T) {
	m := Default()
	log := logOf(
		chatlog.Command(chatlog.CmdCheckSnow, []string{"sunshine"}, "jane#1234", "general"),
		chatlog.SendingResort(chatlog.CmdCanadaSnow, "sunshine"),
		chatlog.SendingResort(chatlog.CmdCanadaSnow, "fernie"),
		chatlog.SendingResort(chatlog.CmdUSASnow, "sun"),
	)

	assert.Equal(t, 2, m.ResortQueryCount(log, "sunshine"))
	assert.Equal(t, 1, m.ResortQueryCount(log, "sun"))
	assert.Equal(t, 1, m.ResortQueryCount(log, "fernie"))
	assert.Zero(t, m.ResortQueryCount(log, ""))

	r := m.Report(log, "sunshine", "fernie")
	assert.Equal(t, map[string]int{"sunshine": 2, "fernie": 1}, r.ResortChecks)
}

func TestMemberJoinAndHelp(t *testing.T) {
	m := Default()
	log := logOf(
		chatlog.MemberJoined("jane"),
		chatlog.MemberJoined("bob"),
	) + "Commands:\n  checksnow\n" + chatlog.HelpFooter + "\n"

	assert.Equal(t, 2, m.MemberJoinCount(log))
	assert.Equal(t, 1, m.HelpCount(log))
}

func TestActiveUsers(t *testing.T) {
	m := Default()
	log := logOf(
		chatlog.Message("jane#1234", "Hello"),
		chatlog.Message("jane#1234", "Bye"),
		chatlog.Command(chatlog.CmdAccept, nil, "bob99#4321", chatlog.DirectChannel("bob99#4321")),
	)

	assert.Equal(t, []string{"bob99#4321", "jane#1234"}, m.ActiveUsers(log))

	r := m.Report(log)
	assert.Equal(t, map[string]int{"bob99#4321": 0, "jane#1234": 2}, r.UserMessages)
}

func TestValidHandle(t *testing.T) {
	assert.True(t, ValidHandle("jane#1234"))
	assert.True(t, ValidHandle("SnowBot#0001"))
	assert.False(t, ValidHandle("j#1234"))
	assert.False(t, ValidHandle("jane#123"))
	assert.False(t, ValidHandle("jane doe#1234"))
}
