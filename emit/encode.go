package emit

import (
	"go.uber.org/zap"

	"github.com/wippyai/ctoreval/emit/internal/binary"
	"github.com/wippyai/ctoreval/ir"
)

// Encode returns a core wasm module holding the image: one memory exported
// as MemoryExport, one active data segment at Base, and one immutable i32
// global per placed program global, exported under the global's name and
// holding its address.
func (im *Image) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(binary.Magic)
	w.WriteU32LE(binary.Version)

	sec := binary.NewWriter()
	sec.WriteU32(1)
	sec.Byte(0x00) // min only
	sec.WriteU32(max(im.Pages(), 1))
	w.Section(binary.SectionMemory, sec)

	if len(im.globals) > 0 {
		sec = binary.NewWriter()
		sec.WriteU32(uint32(len(im.globals)))
		for _, p := range im.globals {
			sec.Byte(binary.ValI32)
			sec.Byte(0) // immutable
			sec.WriteI32Const(p.addr)
		}
		w.Section(binary.SectionGlobal, sec)
	}

	sec = binary.NewWriter()
	sec.WriteU32(uint32(len(im.globals) + 1))
	sec.WriteName(MemoryExport)
	sec.Byte(binary.ExportMemory)
	sec.WriteU32(0)
	for i, p := range im.globals {
		sec.WriteName(p.global.Name)
		sec.Byte(binary.ExportGlobal)
		sec.WriteU32(uint32(i))
	}
	w.Section(binary.SectionExport, sec)

	if len(im.data) > 0 {
		sec = binary.NewWriter()
		sec.WriteU32(1)
		sec.WriteU32(0) // active, memory 0
		sec.WriteI32Const(Base)
		sec.WriteU32(uint32(len(im.data)))
		sec.WriteBytes(im.data)
		w.Section(binary.SectionData, sec)
	}
	return w.Bytes()
}

// Program builds the image of prog and encodes it.
func Program(prog *ir.Program) ([]byte, error) {
	im, err := Build(prog)
	if err != nil {
		return nil, err
	}
	Logger().Debug("image built",
		zap.String("program", prog.Name),
		zap.Int("globals", len(im.globals)),
		zap.Uint32("end", im.End()),
		zap.Uint32("pages", im.Pages()))
	return im.Encode(), nil
}
