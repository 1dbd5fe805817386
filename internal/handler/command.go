package handler

import (
	"strings"

	"earnbot/internal/keyboard"
)

// Command is a recognized text command, either a slash command or a
// reply keyboard label.
type Command int

const (
	CmdNone Command = iota
	CmdStart
	CmdCancel
	CmdBalance
	CmdRefer
	CmdWithdraw
	CmdCreateTask
	CmdSupport
	CmdAdmin
	CmdAddBalance
	CmdSetBalance
	CmdReduceBalance
	CmdAllRequests
	CmdUserList
	CmdTaskRequests
	CmdSetTaskPrice
)

var commandNames = map[Command]string{
	CmdNone:          "none",
	CmdStart:         "start",
	CmdCancel:        "cancel",
	CmdBalance:       "balance",
	CmdRefer:         "refer",
	CmdWithdraw:      "withdraw",
	CmdCreateTask:    "create_task",
	CmdSupport:       "support",
	CmdAdmin:         "admin",
	CmdAddBalance:    "add_balance",
	CmdSetBalance:    "set_balance",
	CmdReduceBalance: "reduce_balance",
	CmdAllRequests:   "all_requests",
	CmdUserList:      "user_list",
	CmdTaskRequests:  "task_requests",
	CmdSetTaskPrice:  "set_task_price",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// AdminOnly reports whether only the administrator may run c.
func (c Command) AdminOnly() bool {
	return c >= CmdAdmin
}

// slashCommands match on the first word, ignoring a trailing @botname.
var slashCommands = map[string]Command{
	"/start":   CmdStart,
	"/cancel":  CmdCancel,
	"/balance": CmdBalance,
	"/refer":   CmdRefer,
	"/admin":   CmdAdmin,
}

// labelCommands match on the whole trimmed text.
var labelCommands = map[string]Command{
	keyboard.BtnBack:          CmdCancel,
	keyboard.BtnBalance:       CmdBalance,
	keyboard.BtnRefer:         CmdRefer,
	keyboard.BtnWithdraw:      CmdWithdraw,
	keyboard.BtnCreateTask:    CmdCreateTask,
	keyboard.BtnSupport:       CmdSupport,
	keyboard.BtnAddBalance:    CmdAddBalance,
	keyboard.BtnSetBalance:    CmdSetBalance,
	keyboard.BtnReduceBalance: CmdReduceBalance,
	keyboard.BtnAllRequests:   CmdAllRequests,
	keyboard.BtnUserList:      CmdUserList,
	keyboard.BtnTaskRequests:  CmdTaskRequests,
	keyboard.BtnSetTaskPrice:  CmdSetTaskPrice,
}

// ParseCommand resolves text to a Command and returns the words after a
// slash command as args.
func ParseCommand(text string) (Command, []string) {
	text = strings.TrimSpace(text)
	if cmd, ok := labelCommands[text]; ok {
		return cmd, nil
	}
	if !strings.HasPrefix(text, "/") {
		return CmdNone, nil
	}

	fields := strings.Fields(text)
	name := fields[0]
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	if cmd, ok := slashCommands[strings.ToLower(name)]; ok {
		return cmd, fields[1:]
	}
	return CmdNone, nil
}
