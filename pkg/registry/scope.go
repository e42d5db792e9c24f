package registry

// Scope registers sections under a common "<prefix>::" namespace, so every
// object owning timed sections gets names that cannot collide with others.
type Scope struct {
	reg    *Registry
	prefix string
}

// NewScope returns a Scope registering into reg. An empty prefix registers names as given.
func NewScope(reg *Registry, prefix string) *Scope {
	return &Scope{reg: reg, prefix: prefix}
}

// Prefix returns the scope prefix.
func (s *Scope) Prefix() string {
	return s.prefix
}

// QualifiedName returns the full registered name for section.
func (s *Scope) QualifiedName(section string) string {
	if s.prefix == "" {
		return section
	}
	return s.prefix + "::" + section
}

// Register registers a section without a live message.
func (s *Scope) Register(section string, level uint) SectionID {
	return s.reg.Register(s.QualifiedName(section), level, "", false)
}

// RegisterLive registers a section that the live printer announces with message.
func (s *Scope) RegisterLive(section string, level uint, message string, printDots bool) SectionID {
	return s.reg.Register(s.QualifiedName(section), level, message, printDots)
}
