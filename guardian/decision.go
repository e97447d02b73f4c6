package guardian

import "github.com/n0rdy/guardian/notifier"

type State int

const (
	Unresolved State = iota
	OwnedNormal
	OwnedWarned
	Deleted
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case OwnedNormal:
		return "owned-normal"
	case OwnedWarned:
		return "owned-warned"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type CommandType string

const (
	CreateRecordCommand CommandType = "create_record"
	AssignOwnerCommand  CommandType = "assign_owner"
	DeleteCommand       CommandType = "delete"
	NotifyCommand       CommandType = "notify"
)

type Command struct {
	Type         CommandType
	Queue        string
	Vhost        string
	Owner        string                // set for AssignOwnerCommand and NotifyCommand
	Notification notifier.Notification // set for NotifyCommand
}

// Decision is the outcome of evaluating one queue. If Err is set, the evaluation stopped early
// and State is the last state known before the failure.
type Decision struct {
	Queue    string
	Vhost    string
	Size     int
	State    State
	Commands []Command
	Err      error
}

func (d *Decision) addNotification(notification notifier.Notification, owner string) {
	d.Commands = append(d.Commands, Command{
		Type:         NotifyCommand,
		Queue:        d.Queue,
		Vhost:        d.Vhost,
		Owner:        owner,
		Notification: notification,
	})
}

func (d *Decision) CommandsOf(commandType CommandType) []Command {
	var commands []Command
	for _, cmd := range d.Commands {
		if cmd.Type == commandType {
			commands = append(commands, cmd)
		}
	}
	return commands
}

type CycleReport struct {
	CycleId       string
	Decisions     []Decision
	Notifications int // handed over to the outbox
}
