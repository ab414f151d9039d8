package drawer

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	colors "gopkg.in/go-playground/colors.v1"
)

// SVGDrawer writes the stage chain as a Graphviz DOT file ready for
// `dot -Tsvg`. Nodes fade from the caller-side color to the transport-side
// color so the traversal direction is readable at a glance.
type SVGDrawer struct {
	graph    graph.Graph[string, string]
	order    []string
	fileName string

	headHex string
	tailHex string
}

// NewSVGDrawer creates a drawer writing to fileName.
func NewSVGDrawer(fileName string) *SVGDrawer {
	return &SVGDrawer{
		graph:    graph.New(graph.StringHash, graph.Directed()),
		fileName: fileName,
		headHex:  "#4a90d9",
		tailHex:  "#d94a4a",
	}
}

func (d *SVGDrawer) AddStage(name string) error {
	err := d.graph.AddVertex(name)
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}
	d.order = append(d.order, name)

	return nil
}

func (d *SVGDrawer) AddLink(parentName, childName string) error {
	err := d.graph.AddEdge(parentName, childName)
	if err != nil {
		return errors.Wrap(err, "unable to add edge")
	}

	return nil
}

func (d *SVGDrawer) Draw() error {
	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrap(err, "unable to create diagram file")
	}
	defer file.Close()

	err = d.render(file)
	if err != nil {
		return errors.Wrap(err, "unable to render diagram")
	}

	return nil
}

const dotTemplate = `strict digraph {
	rankdir="LR";
	node [shape="box", style="filled"];
	{{range $s := .Statements}}
	"{{.Source}}" {{if .Target}}-> "{{.Target}}"{{else}}[ fillcolor="{{.FillColor}}" ]{{end}};
	{{- end}}
}
`

type statement struct {
	Source    string
	Target    string
	FillColor string
}

type description struct {
	Statements []statement
}

func (d *SVGDrawer) render(w io.Writer) error {
	desc := description{}
	for i, name := range d.order {
		fill, err := d.fillColor(i, len(d.order))
		if err != nil {
			return err
		}
		desc.Statements = append(desc.Statements, statement{Source: name, FillColor: fill})
	}

	adjacency, err := d.graph.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to read adjacency map")
	}
	for _, name := range d.order {
		for child := range adjacency[name] {
			desc.Statements = append(desc.Statements, statement{Source: name, Target: child})
		}
	}

	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "unable to parse template")
	}

	return errors.Wrap(tpl.Execute(w, desc), "unable to execute template")
}

// fillColor interpolates between the head and tail colors by chain position.
func (d *SVGDrawer) fillColor(index, total int) (string, error) {
	head, err := colors.ParseHEX(d.headHex)
	if err != nil {
		return "", errors.Wrap(err, "unable to parse head color")
	}
	tail, err := colors.ParseHEX(d.tailHex)
	if err != nil {
		return "", errors.Wrap(err, "unable to parse tail color")
	}

	ratio := 0.0
	if total > 1 {
		ratio = float64(index) / float64(total-1)
	}
	from, to := head.ToRGB(), tail.ToRGB()
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*ratio)
	}

	return fmt.Sprintf("#%02x%02x%02x", mix(from.R, to.R), mix(from.G, to.G), mix(from.B, to.B)), nil
}

var _ Drawer = (*SVGDrawer)(nil)
