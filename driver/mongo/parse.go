package mongo

import (
	"errors"
	"strings"
)

// command is one parsed shell-style statement, such as
// db.users.find({"age": {"$gt": 18}}) or orders.deleteMany({}).
type command struct {
	DB         string
	Collection string
	Op         string
	Arg        string // raw JSON between the parens, {} when omitted
}

var errBadCommand = errors.New("mongo: expected [db.]collection.operation({...})")

func parseCommand(q string) (command, error) {
	s := strings.TrimSpace(q)
	open := strings.Index(s, "(")
	stop := strings.LastIndex(s, ")")
	if open < 0 || stop < open {
		return command{}, errBadCommand
	}

	arg := strings.TrimSpace(s[open+1 : stop])
	if arg == "" {
		arg = "{}"
	}

	var cmd command
	switch segs := strings.Split(s[:open], "."); len(segs) {
	case 2:
		cmd = command{Collection: segs[0], Op: segs[1], Arg: arg}
	case 3:
		cmd = command{DB: segs[0], Collection: segs[1], Op: segs[2], Arg: arg}
	default:
		return command{}, errBadCommand
	}
	if cmd.Collection == "" || cmd.Op == "" {
		return command{}, errBadCommand
	}
	return cmd, nil
}
