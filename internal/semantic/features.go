package semantic

// Features is the set of monotonic feature-use flags the analyzer
// accumulates while walking a program. Each flag, once set, causes the
// code generator to include the matching runtime module (spec.md §4.3,
// §4.5); selection is additive, never cleared once raised.
type Features struct {
	IO      bool // io module: print, file read/write text
	Format  bool // format module: "{expr:spec}" holes, hex/binary/octal casts
	Floats  bool // float module: any float literal, operation, or widening
	Files   bool // file module: open/read/write/close/delete
	Buffers bool // resource module: buffer create/resize/byte access
	Lists   bool // list module: list type, append, element access
	Strings bool // string module: any text literal, text variable, or text property
	Time    bool // time module: current time, timers, wait/sleep
	Args    bool // args module: arguments's ...
	Env     bool // args module (environment half): environment's ...
	Math    bool // math module: absolute value, sign, min/max-shaped use
	Binary  bool // binary module: bitwise/shift operators
	Heap    bool // heap module: buffers of either kind, buffer resize, and lists
}

func (f *Features) markIO()     { f.IO = true }
func (f *Features) markFormat() { f.Format = true }
func (f *Features) markFloats() { f.Floats = true }

// markFiles also pulls in Buffers: the open-descriptor table and
// rt_fd_register/rt_fd_cleanup live in the resource module, which is
// gated on Buffers, so a file-only program (no buffer of its own) would
// otherwise emit calls into a module that was never assembled in.
func (f *Features) markFiles()   { f.Files = true; f.IO = true; f.Buffers = true }
func (f *Features) markBuffers() { f.Buffers = true }
func (f *Features) markLists()   { f.Lists = true }
func (f *Features) markStrings() { f.Strings = true }
func (f *Features) markTime()    { f.Time = true }
func (f *Features) markArgs()    { f.Args = true }
func (f *Features) markEnv()     { f.Env = true }
func (f *Features) markMath()    { f.Math = true }
func (f *Features) markBinary()  { f.Binary = true }
func (f *Features) markHeap()    { f.Heap = true }
