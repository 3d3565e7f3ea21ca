package ecs

// Components shared by the internal tests. Each one appends "<name>.<hook>" to a trace so tests can
// assert exact call order across entities and phases.

type trace struct {
	calls []string
}

func (t *trace) add(call string) {
	t.calls = append(t.calls, call)
}

func (t *trace) reset() {
	t.calls = t.calls[:0]
}

// basicComp implements BasicLifeTime only.
type basicComp struct {
	BaseComponent
	name     string
	tr       *trace
	onStart  func()
	onUpdate func()
}

func (c *basicComp) Start() {
	c.tr.add(c.name + ".start")
	if c.onStart != nil {
		c.onStart()
	}
}

func (c *basicComp) Update() {
	c.tr.add(c.name + ".update")
	if c.onUpdate != nil {
		c.onUpdate()
	}
}

// advancedComp implements AdvancedLifeTime only.
type advancedComp struct {
	BaseComponent
	name string
	tr   *trace
}

func (c *advancedComp) EarlyUpdate() { c.tr.add(c.name + ".early") }
func (c *advancedComp) LateUpdate()  { c.tr.add(c.name + ".late") }

// fullComp implements both lifecycle interfaces.
type fullComp struct {
	BaseComponent
	name string
	tr   *trace
}

func (c *fullComp) Start()       { c.tr.add(c.name + ".start") }
func (c *fullComp) Update()      { c.tr.add(c.name + ".update") }
func (c *fullComp) EarlyUpdate() { c.tr.add(c.name + ".early") }
func (c *fullComp) LateUpdate()  { c.tr.add(c.name + ".late") }

// Health and Position carry data and no hooks.
type Health struct {
	BaseComponent
	HP int
}

type Position struct {
	BaseComponent
	X, Y float64
}

// counter increments on every Update.
type counter struct {
	BaseComponent
	started int
	n       int
}

func (c *counter) Start()  { c.started++ }
func (c *counter) Update() { c.n++ }
