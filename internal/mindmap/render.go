package mindmap

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// RenderSVG writes the diagram as a standalone SVG document with the transform applied
func RenderSVG(w io.Writer, d *Diagram, t Transform) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(d.Width), num(d.Height), num(d.Width), num(d.Height))
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="#f8fafc"/>`+"\n")
	fmt.Fprintf(bw, `<g transform="translate(%s,%s) scale(%s)">`+"\n", num(t.X), num(t.Y), num(t.K))

	for _, l := range d.Links {
		fmt.Fprintf(bw, `<path class="link" d="%s" fill="none" stroke="%s" stroke-width="2"/>`+"\n", l.Path, LinkStroke)
	}

	for _, n := range d.Nodes {
		class := "node leaf-node"
		if n.Depth == 0 {
			class = "node root-node"
		}
		label := escape(n.Label)

		fmt.Fprintf(bw, `<g class="%s" data-index="%d" transform="translate(%s,%s)">`+"\n", class, n.Index, num(n.X), num(n.Y))
		fmt.Fprintf(bw, `<circle r="%s" fill="%s" stroke="%s" stroke-width="2"/>`+"\n", num(n.Radius), n.Fill, NodeStroke)
		// White halo under the label keeps it readable over links
		fmt.Fprintf(bw, `<text dy=".35em" x="%s" text-anchor="%s" font-size="14" stroke="white" stroke-width="3">%s</text>`+"\n",
			num(n.LabelX), n.LabelAnchor, label)
		fmt.Fprintf(bw, `<text dy=".35em" x="%s" text-anchor="%s" font-size="14" fill="#334155">%s</text>`+"\n",
			num(n.LabelX), n.LabelAnchor, label)
		bw.WriteString("</g>\n")
	}

	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// RenderSVG writes the canvas's current diagram and transform
func (c *Canvas) RenderSVG(w io.Writer) error {
	return RenderSVG(w, c.diagram, c.transform)
}
