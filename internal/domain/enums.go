package domain

// SenderKind tells whether a message was written by the local user or by the peer.
type SenderKind int

const (
	SenderRemote SenderKind = iota
	SenderLocal
)

func (k SenderKind) String() string {
	switch k {
	case SenderLocal:
		return "local"
	case SenderRemote:
		return "remote"
	}
	return "unknown"
}

// KindOf classifies a message relative to the local user.
func KindOf(msg Message, localUserID string) SenderKind {
	if localUserID != "" && msg.SenderID == localUserID {
		return SenderLocal
	}
	return SenderRemote
}
