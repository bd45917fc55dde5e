package handlebars

// Scopes of one render live in an arena owned by that render. A Scope is a
// handle (arena index plus generation) so parent links are plain integers and
// a handle that outlives its frame reads as empty instead of aliasing a newer
// frame.

type frame struct {
	parent      int
	gen         uint64
	model       any
	attrs       map[string]any
	blockParams map[string]any
	// data is the frame's slice of the data channel: pseudo-variables and
	// values written by decorators or helpers.
	data map[string]any
}

// inlinePartial is a partial defined with {{#*inline "name"}}.
type inlinePartial struct {
	name string
	tmpl *Template
}

// partialCall is one entry of the partial invocation stack.
type partialCall struct {
	name string
	pos  Position
}

// partialBlock is the body of a {{#> name}}...{{/name}} call, reachable as
// @partial-block from inside the called partial.
type partialBlock struct {
	body   *Program
	tmpl   *Template
	parent *partialBlock
	// depth is the length of the invocation stack at the call site.
	depth int
}

type renderState struct {
	env     *Engine
	frames  []frame
	gen     uint64
	calls   []partialCall
	inline  []map[string]*inlinePartial
	pblock  *partialBlock
	current *Template
}

// Scope is a node of the lookup chain of a render.
type Scope struct {
	st  *renderState
	idx int
	gen uint64
}

func (st *renderState) push(parent Scope, model any) Scope {
	st.gen++
	p := -1
	if parent.valid() {
		p = parent.idx
	}
	st.frames = append(st.frames, frame{parent: p, gen: st.gen, model: model})
	return Scope{st: st, idx: len(st.frames) - 1, gen: st.gen}
}

// pop releases s and every frame above it.
func (st *renderState) pop(s Scope) {
	if s.st == st && s.idx < len(st.frames) && st.frames[s.idx].gen == s.gen {
		clear(st.frames[s.idx:])
		st.frames = st.frames[:s.idx]
	}
}

// isolate returns a parentless frame over the same model and data channel.
// Root-level decorators run against it so they can't see or leak attributes
// through the chain.
func (st *renderState) isolate(s Scope) Scope {
	data := s.ensureData()
	c := st.push(Scope{}, s.Model())
	st.frames[c.idx].data = data
	return c
}

func (s Scope) valid() bool {
	return s.st != nil && s.idx >= 0 && s.idx < len(s.st.frames) && s.st.frames[s.idx].gen == s.gen
}

func (s Scope) f() *frame { return &s.st.frames[s.idx] }

// Model returns the current context value.
func (s Scope) Model() any {
	if !s.valid() {
		return nil
	}
	return s.f().model
}

// Parent returns the enclosing scope.
func (s Scope) Parent() (Scope, bool) {
	if !s.valid() || s.f().parent < 0 {
		return Scope{}, false
	}
	p := s.f().parent
	return Scope{st: s.st, idx: p, gen: s.st.frames[p].gen}, true
}

// Root returns the outermost scope of the chain.
func (s Scope) Root() Scope {
	for {
		p, ok := s.Parent()
		if !ok {
			return s
		}
		s = p
	}
}

// Data reads the data channel, innermost frame first.
func (s Scope) Data(name string) (any, bool) {
	for cur, ok := s, s.valid(); ok; cur, ok = cur.Parent() {
		if v, found := cur.f().data[name]; found {
			return v, true
		}
	}
	return nil, false
}

// SetData writes to the data channel of this frame.
func (s Scope) SetData(name string, v any) {
	if !s.valid() {
		return
	}
	s.ensureData()[name] = v
}

func (s Scope) ensureData() map[string]any {
	f := s.f()
	if f.data == nil {
		f.data = map[string]any{}
	}
	return f.data
}

// BlockParam reads a block parameter bound on this frame only.
func (s Scope) BlockParam(name string) (any, bool) {
	if !s.valid() {
		return nil, false
	}
	v, ok := s.f().blockParams[name]
	return v, ok
}

// Lookup compiles and resolves a path expression.
func (s Scope) Lookup(expr string) (any, bool) {
	p, err := CompilePath(expr)
	if err != nil {
		return nil, false
	}
	return s.Resolve(p)
}

func (s Scope) resolvers() []ValueResolver {
	if s.st != nil && s.st.env != nil && len(s.st.env.Resolvers) > 0 {
		return s.st.env.Resolvers
	}
	return DefaultResolvers
}

type lookupResult int

const (
	unresolved lookupResult = iota
	resolved
	// broken marks a path whose head resolved but a later segment did not.
	broken
)

// Resolve evaluates a compiled path. Leading ../ segments walk to ancestors;
// running out of ancestors yields no value. A head that is undefined on the
// current frame is retried on the enclosing frames unless the path is
// anchored to this; once the head resolves a later miss yields no value.
func (s Scope) Resolve(p *Path) (any, bool) {
	if !s.valid() {
		return nil, false
	}
	if p.Data {
		return s.resolveData(p)
	}
	cur := s
	for i := 0; i < p.Up; i++ {
		parent, ok := cur.Parent()
		if !ok {
			return nil, false
		}
		cur = parent
	}
	if len(p.Segments) == 0 {
		return cur.Model(), true
	}
	useParams := p.Up == 0 && !p.This
	for {
		v, res := cur.resolveHere(p, useParams)
		switch res {
		case resolved:
			return v, true
		case broken:
			return nil, false
		}
		if p.This {
			return nil, false
		}
		parent, ok := cur.Parent()
		if !ok {
			return nil, false
		}
		cur = parent
	}
}

func (s Scope) resolveHere(p *Path, useParams bool) (any, lookupResult) {
	f := s.f()
	head := p.Segments[0]
	v, ok := any(nil), false
	if useParams && !head.Bracketed {
		v, ok = f.blockParams[head.Name]
	}
	if !ok {
		v, ok = resolveSegment(s.resolvers(), f.model, head)
	}
	if !ok && f.attrs != nil {
		v, ok = f.attrs[head.Name]
	}
	if !ok {
		return nil, unresolved
	}
	return s.resolveTail(v, p.Segments[1:])
}

func (s Scope) resolveTail(v any, segs []Segment) (any, lookupResult) {
	for _, seg := range segs {
		next, ok := resolveSegment(s.resolvers(), v, seg)
		if !ok {
			return nil, broken
		}
		v = next
	}
	return v, resolved
}

// resolveData reads @name paths: @root is the root model, anything else is
// read from the data channel of the (possibly ../-shifted) frame chain.
func (s Scope) resolveData(p *Path) (any, bool) {
	if len(p.Segments) == 0 {
		return nil, false
	}
	cur := s
	for i := 0; i < p.Up; i++ {
		parent, ok := cur.Parent()
		if !ok {
			return nil, false
		}
		cur = parent
	}
	head := p.Segments[0].Name
	var v any
	if head == "root" {
		v = cur.Root().Model()
		if root := s.st.root(); root.valid() {
			v = root.Model()
		}
	} else {
		var ok bool
		if v, ok = cur.Data(head); !ok {
			return nil, false
		}
	}
	v, res := s.resolveTail(v, p.Segments[1:])
	return v, res == resolved
}

// root returns the first frame of the render.
func (st *renderState) root() Scope {
	if len(st.frames) == 0 {
		return Scope{}
	}
	return Scope{st: st, idx: 0, gen: st.frames[0].gen}
}
