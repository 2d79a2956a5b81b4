// Package chatlog defines the event lines the command layer writes to the
// activity log. The log miner builds its patterns from the same markers, so
// both sides change together.
package chatlog

import (
	"fmt"
	"strings"
)

// Recognized chat commands, without the "!" prefix.
const (
	CmdUSASnow                    = "USAsnow"
	CmdCanadaSnow                 = "canadasnow"
	CmdResorts                    = "resorts"
	CmdCheckSnow                  = "checksnow"
	CmdCheckTemp                  = "checktemp"
	CmdCheckFeelsLike             = "checkfeelslike"
	CmdCheckTomorrow              = "checktomorrow"
	CmdCheckTomorrowTemp          = "checktomorrowtemp"
	CmdCheckTomorrowFeelsLike     = "checktomorrowfeelslike"
	CmdCheckTomorrowPrecipitation = "checktomorrowprecipitation"
	CmdAccept                     = "accept"
	CmdServer                     = "server"
)

// Commands lists every recognized command in help order.
var Commands = []string{
	CmdUSASnow,
	CmdCanadaSnow,
	CmdResorts,
	CmdCheckSnow,
	CmdCheckTemp,
	CmdCheckFeelsLike,
	CmdCheckTomorrow,
	CmdCheckTomorrowTemp,
	CmdCheckTomorrowFeelsLike,
	CmdCheckTomorrowPrecipitation,
	CmdAccept,
	CmdServer,
}

// Handler names that prefix each command's log lines.
var handlers = map[string]string{
	CmdUSASnow:                    "usa_snow_report",
	CmdCanadaSnow:                 "canada_snow_report",
	CmdResorts:                    "list_resorts",
	CmdCheckSnow:                  "check_4day_snow",
	CmdCheckTemp:                  "check_temp_now",
	CmdCheckFeelsLike:             "check_feelslike_now",
	CmdCheckTomorrow:              "check_tomorrow",
	CmdCheckTomorrowTemp:          "check_temp_tomorrow",
	CmdCheckTomorrowFeelsLike:     "check_feelslike_tomorrow",
	CmdCheckTomorrowPrecipitation: "check_precipitation_tomorrow",
	CmdAccept:                     "assign_role",
	CmdServer:                     "fetch_server_info",
}

// Markers and canned texts.
const (
	OnMessage           = "on_message"
	OnMemberJoin        = "on_member_join"
	DetectedMessageBy   = OnMessage + ": Detected message sent by "
	DirectMessagePrefix = "Direct Message with "
	SendingResortData   = ": Sending data for resort "
	HelpFooter          = "Type !help command for more info on a command."
	AcceptRulesReply    = "Invalid command, please !accept the rules."
	HelloContent        = "Hello"
	ByeContent          = "Bye"
)

// Handler returns the handler name logged for command, or the command itself
// when it is not a recognized one.
func Handler(command string) string {
	if h, ok := handlers[command]; ok {
		return h
	}
	return command
}

// Command renders a command invocation:
//
//	check_tomorrow: Command ("!checktomorrow fernie"): Author (jane#1234): Channel: (general)
func Command(command string, args []string, author, channel string) string {
	invocation := "!" + command
	if len(args) > 0 {
		invocation += " " + strings.Join(args, " ")
	}
	return fmt.Sprintf("%s: Command (%q): Author (%s): Channel: (%s)", Handler(command), invocation, author, channel)
}

// Message renders an inbound chat message.
func Message(author, content string) string {
	return fmt.Sprintf("%s%s: Message Content: %q", DetectedMessageBy, author, content)
}

// MessageContent renders the line logged when a canned greeting is recognized.
func MessageContent(content string) string {
	return fmt.Sprintf("%s: Message Content %q", OnMessage, content)
}

// DirectChannel names the direct-message channel with user.
func DirectChannel(user string) string {
	return DirectMessagePrefix + user
}

// SendingResort renders the per-resort line of the country snow reports.
func SendingResort(command, key string) string {
	return Handler(command) + SendingResortData + key
}

// MemberJoined renders a member join event.
func MemberJoined(name string) string {
	return fmt.Sprintf("%s: %s has joined the server", OnMemberJoin, name)
}
