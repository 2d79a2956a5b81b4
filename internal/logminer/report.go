package logminer

// AcceptStats groups the role-assignment facts.
type AcceptStats struct {
	Total        int `json:"total"`
	Success      int `json:"success"`
	WrongChannel int `json:"wrongChannel"`
	Fail         int `json:"fail"`
}

// Report is every fact the miner knows how to extract, computed in one pass per pattern.
type Report struct {
	Messages     int            `json:"messages"`
	BotMessages  int            `json:"botMessages"`
	Hello        int            `json:"hello"`
	Bye          int            `json:"bye"`
	MemberJoins  int            `json:"memberJoins"`
	HelpReplies  int            `json:"helpReplies"`
	Commands     map[string]int `json:"commands"`
	Accept       AcceptStats    `json:"accept"`
	ActiveUsers  []string       `json:"activeUsers"`
	UserMessages map[string]int `json:"userMessages"`
	ResortChecks map[string]int `json:"resortChecks,omitempty"`
}

// Report mines log. resortKeys, when given, adds a per-resort query count.
func (m *Miner) Report(log string, resortKeys ...string) Report {
	users := m.ActiveUsers(log)
	perUser := make(map[string]int, len(users))
	for _, u := range users {
		perUser[u] = m.UserMessageCount(log, u)
	}

	var checks map[string]int
	if len(resortKeys) > 0 {
		checks = make(map[string]int, len(resortKeys))
		for _, k := range resortKeys {
			checks[k] = m.ResortQueryCount(log, k)
		}
	}

	total := m.AcceptTotalCount(log)
	success := m.AcceptSuccessCount(log)

	return Report{
		Messages:    m.MessageCount(log),
		BotMessages: m.BotMessageCount(log),
		Hello:       m.HelloCount(log),
		Bye:         m.ByeCount(log),
		MemberJoins: m.MemberJoinCount(log),
		HelpReplies: m.HelpCount(log),
		Commands:    m.CommandCounts(log),
		Accept: AcceptStats{
			Total:        total,
			Success:      success,
			WrongChannel: total - success,
			Fail:         m.AcceptFailCount(log),
		},
		ActiveUsers:  users,
		UserMessages: perUser,
		ResortChecks: checks,
	}
}
