package scrub

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"mdm/internal/pdfdoc"
)

// PDF rewrites the document in r to w without its document-information
// dictionary and without the catalog-level XMP stream.
//
// The output is a fresh file with a classic xref table that holds only the
// objects reachable from the catalog, so the dropped dictionaries and any
// leftovers of earlier incremental updates do not survive as unreferenced
// objects. Page-level metadata streams and embedded files are left alone.
// The output is not linearized.
func PDF(r io.ReadSeeker, w io.Writer) error {
	version := pdfdoc.HeaderVersion(r)

	ctx, err := pdfdoc.Open(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if ctx.Encrypt != nil {
		return ErrEncryptedPDF
	}

	catalog, ok := pdfdoc.Catalog(ctx.XRefTable)
	if !ok {
		return fmt.Errorf("%w: document catalog not found", ErrDecodeFailed)
	}
	delete(catalog, "Metadata")
	ctx.Info = nil

	root := *ctx.Root
	objs, err := reachable(ctx.XRefTable, root, catalog)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if err := writePDF(w, version, objs, root); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

type pdfObject struct {
	nr  int
	gen int
	obj types.Object
}

// reachable resolves every object reachable from the catalog and returns them
// sorted by object number. catalog stands in for the root object so edits to
// it are what gets written.
func reachable(xrt *model.XRefTable, root types.IndirectRef, catalog types.Dict) ([]pdfObject, error) {
	found := map[int]pdfObject{}

	var walk func(o types.Object) error
	walk = func(o types.Object) error {
		switch obj := o.(type) {
		case types.IndirectRef:
			nr := int(obj.ObjectNumber)
			if _, seen := found[nr]; seen {
				return nil
			}
			resolved, err := xrt.Dereference(obj)
			if err != nil {
				return err
			}
			if resolved == nil {
				return nil
			}
			found[nr] = pdfObject{nr: nr, gen: int(obj.GenerationNumber), obj: resolved}
			return walk(resolved)
		case *types.IndirectRef:
			if obj != nil {
				return walk(*obj)
			}
		case types.Dict:
			for _, v := range obj {
				if err := walk(v); err != nil {
					return err
				}
			}
		case types.Array:
			for _, v := range obj {
				if err := walk(v); err != nil {
					return err
				}
			}
		case types.StreamDict:
			return walk(obj.Dict)
		}
		return nil
	}

	rootNr := int(root.ObjectNumber)
	found[rootNr] = pdfObject{nr: rootNr, gen: int(root.GenerationNumber), obj: catalog}
	if err := walk(catalog); err != nil {
		return nil, err
	}

	objs := make([]pdfObject, 0, len(found))
	for _, o := range found {
		objs = append(objs, o)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].nr < objs[j].nr })
	return objs, nil
}

func writePDF(w io.Writer, version string, objs []pdfObject, root types.IndirectRef) error {
	cw := &countingWriter{w: bufio.NewWriter(w)}

	fmt.Fprintf(cw, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	offsets := make(map[int]int64, len(objs))
	gens := make(map[int]int, len(objs))
	for _, o := range objs {
		offsets[o.nr] = cw.n
		gens[o.nr] = o.gen

		fmt.Fprintf(cw, "%d %d obj\n", o.nr, o.gen)
		if err := writeObject(cw, o.obj); err != nil {
			return err
		}
		io.WriteString(cw, "\nendobj\n")
	}

	size := 1
	if len(objs) > 0 {
		size = objs[len(objs)-1].nr + 1
	}

	xrefOffset := cw.n
	fmt.Fprintf(cw, "xref\n0 %d\n", size)
	io.WriteString(cw, "0000000000 65535 f \n")
	for nr := 1; nr < size; nr++ {
		if off, ok := offsets[nr]; ok {
			fmt.Fprintf(cw, "%010d %05d n \n", off, gens[nr])
		} else {
			io.WriteString(cw, "0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(cw, "trailer\n<</Size %d/Root %d %d R>>\nstartxref\n%d\n%%%%EOF\n",
		size, int(root.ObjectNumber), int(root.GenerationNumber), xrefOffset)

	if cw.err != nil {
		return cw.err
	}
	return cw.w.Flush()
}

func writeObject(w io.Writer, o types.Object) error {
	sd, ok := o.(types.StreamDict)
	if !ok {
		_, err := io.WriteString(w, o.PDFString())
		return err
	}
	if sd.Raw == nil && sd.Content != nil {
		if err := sd.Encode(); err != nil {
			return err
		}
	}

	d := make(types.Dict, len(sd.Dict)+1)
	for k, v := range sd.Dict {
		d[k] = v
	}
	d["Length"] = types.Integer(len(sd.Raw))

	io.WriteString(w, d.PDFString())
	io.WriteString(w, "\nstream\n")
	w.Write(sd.Raw)
	_, err := io.WriteString(w, "\nendstream")
	return err
}

// countingWriter tracks the byte offset for the xref table and keeps the
// first write error so the write sequence above stays linear.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
