package service

// EventKind names a committed change.
type EventKind int

const (
	CredentialCreated EventKind = iota + 1
	CredentialUpdated
	CredentialDeleted
	CredentialUsed
	CategoryAdded
	CategoryRemoved
	CategoriesMigrated
	MasterSecretChanged
	Wiped
)

func (k EventKind) String() string {
	switch k {
	case CredentialCreated:
		return "credential created"
	case CredentialUpdated:
		return "credential updated"
	case CredentialDeleted:
		return "credential deleted"
	case CredentialUsed:
		return "credential used"
	case CategoryAdded:
		return "category added"
	case CategoryRemoved:
		return "category removed"
	case CategoriesMigrated:
		return "categories migrated"
	case MasterSecretChanged:
		return "master secret changed"
	case Wiped:
		return "wiped"
	default:
		return "unknown"
	}
}

// Event is emitted after a mutation has been persisted. ID is empty for
// vault-wide events.
type Event struct {
	Kind EventKind
	ID   string
}

// Events returns the change feed. Events are dropped, not queued, when the
// buffer is full.
func (s *VaultService) Events() <-chan Event {
	return s.events
}

func (s *VaultService) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.log.Debug("change event dropped")
	}
}
