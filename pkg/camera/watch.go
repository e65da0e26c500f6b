package camera

// Action says whether a device appeared or went away.
type Action string

// Hotplug actions.
const (
	Added   Action = "added"
	Removed Action = "removed"
)

// Event reports one device arriving or leaving.
type Event struct {
	Action  Action `json:"action"`
	Address string `json:"address"`
}
