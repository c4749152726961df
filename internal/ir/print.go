package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// commentColumn is where variable type annotations start.
const commentColumn = 36

// DumpUnit writes a human-readable listing of u.
func DumpUnit(w io.Writer, u *Unit) error {
	p := &printer{w: w}
	for _, im := range u.Imports {
		p.linef("import %s = %s.%s%s", im.Name, ImportEnv, im.Symbol, sigString(im.Sig))
	}
	for i, s := range u.Segments {
		p.linef("data d%d = %s", i, strconv.Quote(string(s.Data)))
	}
	for i, g := range u.Globals {
		mut := ""
		if g.Mutable {
			mut = " mut"
		}
		p.linef("global g%d %s size=%d%s", i, g.Name, g.Size, mut)
	}
	for i, s := range u.Scratch {
		p.linef("scratch s%d pos=%d %s", i, s.Position, s.Prim)
	}
	if len(u.Table) > 0 {
		p.linef("table [%s]", strings.Join(u.Table, ", "))
	}
	for _, f := range u.Funcs {
		p.function(f)
	}
	return p.err
}

// DumpFunction writes a listing of one function.
func DumpFunction(w io.Writer, f *Function) error {
	p := &printer{w: w}
	p.function(f)
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) linef(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

// annotated pads text to commentColumn by display width and appends note.
func (p *printer) annotated(text, note string) {
	if note == "" {
		p.linef("%s", text)
		return
	}
	if runewidth.StringWidth(text) < commentColumn {
		text = runewidth.FillRight(text, commentColumn)
	} else {
		text += " "
	}
	p.linef("%s; %s", text, note)
}

func (p *printer) function(f *Function) {
	var flags []string
	if f.Export != "" {
		flags = append(flags, "export="+f.Export)
	}
	if f.Inline {
		flags = append(flags, "inline")
	}
	if f.InTable {
		flags = append(flags, "table")
	}
	header := "func " + f.Name + sigString(f.Signature())
	if len(flags) > 0 {
		header += " " + strings.Join(flags, " ")
	}
	p.linef("%s", header)
	p.blocks(f, f.Body, 1)
}

func (p *printer) blocks(f *Function, ids []BlockID, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, id := range ids {
		b := f.Block(id)
		switch b.Kind {
		case BlockBasic:
			p.linef("%sb%d:", indent, b.ID)
			for i := range b.Instrs {
				in := &b.Instrs[i]
				p.annotated(indent+"  "+FormatInstr(in), varNote(f, in.Dst))
				if len(in.Copies) > 0 {
					p.linef("%s    copies %s", indent, copiesString(in.Copies))
				}
			}
			if len(b.ExitCopies) > 0 {
				p.linef("%s  exit copies %s", indent, copiesString(b.ExitCopies))
			}
		case BlockIf, BlockIfElse:
			p.linef("%sb%d: if v%d", indent, b.ID, b.Cond)
			p.blocks(f, b.Body, depth+1)
			if b.Kind == BlockIfElse {
				p.linef("%selse", indent)
				p.blocks(f, b.Else, depth+1)
			}
			if len(b.AroundCopies) > 0 {
				p.linef("%saround copies %s", indent, copiesString(b.AroundCopies))
			}
			p.linef("%send", indent)
		case BlockLoop, BlockBreakable:
			entry := ""
			if len(b.EntryCopies) > 0 {
				entry = " entry copies " + copiesString(b.EntryCopies)
			}
			p.linef("%sb%d: %s%s", indent, b.ID, b.Kind, entry)
			p.blocks(f, b.Body, depth+1)
			p.linef("%send", indent)
		}
	}
}

func varNote(f *Function, dst []Var) string {
	if len(dst) == 0 {
		return ""
	}
	parts := make([]string, len(dst))
	for i, v := range dst {
		parts[i] = f.VarPrim(v).String()
	}
	return strings.Join(parts, ", ")
}

// FormatInstr renders one instruction without its result types.
func FormatInstr(in *Instr) string {
	var sb strings.Builder
	if len(in.Dst) > 0 {
		sb.WriteString(varList(in.Dst))
		sb.WriteString(" = ")
	}
	sb.WriteString(in.Op.String())
	switch in.Op {
	case OpConst:
		if in.Storage.IsFloat() {
			sb.WriteString(" " + strconv.FormatFloat(in.Float, 'g', -1, 64))
		} else {
			sb.WriteString(" " + strconv.FormatInt(in.Imm, 10))
		}
		return sb.String()
	case OpConvert:
		sb.WriteString("." + in.From.String() + "." + in.Storage.String())
	case OpLoad, OpStore:
		sb.WriteString("." + in.Storage.String())
		fmt.Fprintf(&sb, " +%d", in.Offset)
	case OpAddr:
		fmt.Fprintf(&sb, " %s[%d]+%d", in.Zone, in.Index, in.Imm)
		return sb.String()
	case OpCall, OpFuncRef, OpNative, OpGlobalGet, OpGlobalSet:
		sb.WriteString(" " + in.Callee)
	case OpBreak, OpContinue, OpBreakIf:
		fmt.Fprintf(&sb, " b%d", in.Target)
	case OpCallIndirect:
		sb.WriteString(" " + sigString(*in.Sig))
	default:
		if in.Storage != 0 {
			sb.WriteString("." + in.Storage.String())
		}
	}
	if len(in.Args) > 0 {
		sb.WriteString(" ")
		sb.WriteString(varList(in.Args))
	}
	return sb.String()
}

func varList(vs []Var) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = "v" + strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ", ")
}

func copiesString(cs []Copy) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("v%d<-v%d", c.Dst, c.Src)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sigString(s Signature) string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	out := "(" + strings.Join(parts, ", ") + ")"
	if s.Result != 0 {
		out += " " + s.Result.String()
	}
	return out
}
