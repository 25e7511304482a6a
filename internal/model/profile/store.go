package profile

// Store exposes profile retrieval for HTTP handlers and the assistant.
type Store interface {
	List() []Profile
	FindByID(id string) (Profile, bool)
	// Default is the profile a session gets when it does not name one.
	Default() (Profile, bool)
	// Resolve maps an empty id onto Default and anything else onto FindByID.
	Resolve(id string) (Profile, bool)
}

// MemoryStore implements Store over a fixed set of profiles. Lookups go
// through an id index; List keeps the order the profiles were supplied in.
type MemoryStore struct {
	items     []Profile
	byID      map[string]int
	defaultID string
}

// NewMemoryStore indexes items. The profile with DefaultID is the default
// when present, otherwise the first item is.
func NewMemoryStore(items []Profile) *MemoryStore {
	s := &MemoryStore{
		items: append([]Profile(nil), items...),
		byID:  make(map[string]int, len(items)),
	}
	for i, item := range s.items {
		if _, dup := s.byID[item.ID]; dup {
			continue // 重复 id 保留第一个
		}
		s.byID[item.ID] = i
	}
	if _, ok := s.byID[DefaultID]; ok {
		s.defaultID = DefaultID
	} else if len(s.items) > 0 {
		s.defaultID = s.items[0].ID
	}
	return s
}

// List returns the configured profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Profile, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Profile{}, false
	}
	return s.items[i], true
}

// Default returns the default profile; false on an empty store.
func (s *MemoryStore) Default() (Profile, bool) {
	if s.defaultID == "" {
		return Profile{}, false
	}
	return s.FindByID(s.defaultID)
}

func (s *MemoryStore) Resolve(id string) (Profile, bool) {
	if id == "" {
		return s.Default()
	}
	return s.FindByID(id)
}
