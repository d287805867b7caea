package ir

// Layout is the order of blocks in a function and of instructions within each
// block.  A block or instruction allocated in the data flow graph but never
// inserted into the layout is not part of the function body.
type Layout struct {
	blocks    []Block
	inserted  map[Block]bool
	insts     map[Block][]Inst
	instBlock map[Inst]Block
}

func newLayout() Layout {
	return Layout{
		inserted:  make(map[Block]bool),
		insts:     make(map[Block][]Inst),
		instBlock: make(map[Inst]Block),
	}
}

// AppendBlock inserts a block at the end of the layout
func (l *Layout) AppendBlock(b Block) {
	if l.inserted[b] {
		return
	}

	l.inserted[b] = true
	l.blocks = append(l.blocks, b)
}

// IsBlockInserted indicates whether a block is part of the layout
func (l *Layout) IsBlockInserted(b Block) bool {
	return l.inserted[b]
}

// Blocks returns the blocks of the layout in order
func (l *Layout) Blocks() []Block {
	return l.blocks
}

// EntryBlock returns the first block of the layout
func (l *Layout) EntryBlock() (Block, bool) {
	if len(l.blocks) == 0 {
		return InvalidBlock, false
	}

	return l.blocks[0], true
}

// AppendInst inserts an instruction at the end of a block.  The block is
// inserted into the layout if it is not already.
func (l *Layout) AppendInst(inst Inst, b Block) {
	l.AppendBlock(b)
	l.insts[b] = append(l.insts[b], inst)
	l.instBlock[inst] = b
}

// BlockInsts returns the instructions of a block in order
func (l *Layout) BlockInsts(b Block) []Inst {
	return l.insts[b]
}

// LastInst returns the final instruction of a block
func (l *Layout) LastInst(b Block) (Inst, bool) {
	insts := l.insts[b]
	if len(insts) == 0 {
		return InvalidInst, false
	}

	return insts[len(insts)-1], true
}

// InstBlock returns the block containing an instruction
func (l *Layout) InstBlock(inst Inst) (Block, bool) {
	b, ok := l.instBlock[inst]
	return b, ok
}

// NextBlock returns the block laid out after b
func (l *Layout) NextBlock(b Block) (Block, bool) {
	for i, lb := range l.blocks {
		if lb == b && i+1 < len(l.blocks) {
			return l.blocks[i+1], true
		}
	}

	return InvalidBlock, false
}
