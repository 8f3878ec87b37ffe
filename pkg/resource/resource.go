// Package resource reads the static information extracted from an app's
// build artifacts: resource ids, strings, layouts and the constants the
// code references, and turns layout declarations into static widgets.
package resource

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/logger"
)

// Files below the static info directory.
const (
	ManifestFile  = "AndroidManifest.xml"
	PublicFile    = "res/values/public.xml"
	StringsFile   = "res/values/strings.xml"
	LayoutDir     = "res/layout"
	ConstantsFile = "atm/constantInfo.csv"
)

const (
	classPrefix = "android.widget."
	fabClass    = "android.support.design.widget.FloatingActionButton"
)

// layoutTypes are the layout elements turned into static widgets, in
// collection order.
var layoutTypes = []string{"TextView", "EditText", "Button", "ImageButton", fabClass}

// layoutAttrs maps layout attributes to the attribute UI Automator reports.
var layoutAttrs = map[string]string{
	"id":                 core.AttrResourceID,
	"text":               core.AttrText,
	"contentDescription": core.AttrContentDesc,
	"hint":               core.AttrText,
}

// Location is where a resource constant is referenced in code.
type Location struct {
	Package  string `json:"package"`
	Activity string `json:"activity"`
	Method   string `json:"method"`
}

// Widget is a widget declared in a layout file.
type Widget struct {
	core.Widget
	OID       string `json:"oId"`
	Layout    string `json:"layout_name"`
	LayoutOID string `json:"layout_oId"`
	Method    string `json:"method"`
}

type stringRes struct {
	text string
	oid  string
}

// Info is the static information of one app.
type Info struct {
	Package string

	nameToOID   map[string]string
	oidToName   map[string]string
	strings     map[string]stringRes
	layoutToOID map[string]string
	oidToLayout map[string]string
	oidToLoc    map[string]Location
	widgets     []Widget
}

func newInfo() *Info {
	return &Info{
		nameToOID:   make(map[string]string),
		oidToName:   make(map[string]string),
		strings:     make(map[string]stringRes),
		layoutToOID: make(map[string]string),
		oidToLayout: make(map[string]string),
		oidToLoc:    make(map[string]Location),
	}
}

// Empty returns information for an app with no static data.
func Empty() *Info { return newInfo() }

// Parse reads the static info directory. A missing directory yields empty
// information. Within an existing directory the manifest is required and
// every other file is optional.
func Parse(ctx context.Context, dir string) (*Info, error) {
	log := logger.Named("resource")
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		log.Warnw("No static info", "dir", dir)
		return newInfo(), nil
	}

	info := newInfo()
	pkg, err := parseManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	info.Package = pkg

	pub, err := parsePublic(filepath.Join(dir, PublicFile))
	if err != nil {
		return nil, err
	}
	for _, p := range pub {
		switch p.Type {
		case "id":
			info.nameToOID[p.Name] = p.OID
			info.oidToName[p.OID] = p.Name
		case "layout":
			info.layoutToOID[p.Name] = p.OID
			info.oidToLayout[p.OID] = p.Name
		}
	}

	texts, err := parseStrings(filepath.Join(dir, StringsFile))
	if err != nil {
		return nil, err
	}
	for _, p := range pub {
		if p.Type != "string" {
			continue
		}
		if text, ok := texts[p.Name]; ok {
			info.strings[p.Name] = stringRes{text: text, oid: p.OID}
		}
	}

	if err := info.parseConstants(filepath.Join(dir, ConstantsFile)); err != nil {
		return nil, err
	}
	if err := info.parseLayouts(ctx, filepath.Join(dir, LayoutDir)); err != nil {
		return nil, err
	}

	log.Infow("Loaded static info", "package", pkg, "ids", len(info.oidToName),
		"strings", len(info.strings), "layouts", len(info.oidToLayout), "widgets", len(info.widgets))
	return info, nil
}

// WidgetName returns the id name for a numeric resource id.
func (i *Info) WidgetName(oid string) (string, bool) {
	n, ok := i.oidToName[oid]
	return n, ok
}

// WidgetOID returns the numeric resource id of an id name.
func (i *Info) WidgetOID(name string) (string, bool) {
	o, ok := i.nameToOID[name]
	return o, ok
}

// LayoutName returns the layout name for a numeric layout id.
func (i *Info) LayoutName(oid string) (string, bool) {
	n, ok := i.oidToLayout[oid]
	return n, ok
}

// LayoutOID returns the numeric id of a layout.
func (i *Info) LayoutOID(name string) (string, bool) {
	o, ok := i.layoutToOID[name]
	return o, ok
}

// LocationOf returns where the code references a resource constant.
func (i *Info) LocationOf(oid string) (Location, bool) {
	l, ok := i.oidToLoc[oid]
	return l, ok
}

// Widgets returns every widget declared in the layouts.
func (i *Info) Widgets() []Widget { return i.widgets }

// Catalogue returns the layout widgets attributed to an activity, one per
// signature, in declaration order. Static widgets carry no clickable or
// password value.
func (i *Info) Catalogue() []core.Widget {
	seen := make(map[string]bool)
	var out []core.Widget
	for _, w := range i.widgets {
		sig := w.Signature()
		if w.Activity == "" || seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, w.Widget)
	}
	return out
}

// Decode resolves a resource reference such as "@string/save" to the
// string's text, or to the bare name for other references.
func (i *Info) Decode(value string) string {
	if !strings.HasPrefix(value, "@") {
		return value
	}
	name := value[strings.LastIndex(value, "/")+1:]
	if strings.HasPrefix(value, "@string") {
		if s, ok := i.strings[name]; ok {
			return s.text
		}
	}
	switch {
	case strings.HasPrefix(value, "@id"), strings.HasPrefix(value, "@+id"), strings.HasPrefix(value, "@layout"),
		strings.HasPrefix(value, "@string"), strings.HasPrefix(value, "@android:string"),
		strings.HasPrefix(value, "@android:id"):
		return name
	}
	return value
}

func parseManifest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("manifest %s: no manifest element", path)
		}
		if err != nil {
			return "", fmt.Errorf("parse manifest: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "manifest" {
			if pkg := attr(se, "package"); pkg != "" {
				return pkg, nil
			}
			return "", fmt.Errorf("manifest %s: no package", path)
		}
	}
}

type publicEntry struct {
	Type string
	Name string
	OID  string
}

func parsePublic(path string) ([]publicEntry, error) {
	var doc struct {
		Public []struct {
			Type string `xml:"type,attr"`
			Name string `xml:"name,attr"`
			ID   string `xml:"id,attr"`
		} `xml:"public"`
	}
	if err := readXML(path, &doc); err != nil || doc.Public == nil {
		return nil, err
	}
	out := make([]publicEntry, 0, len(doc.Public))
	for _, p := range doc.Public {
		if p.Name == "" || p.ID == "" {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(p.ID), "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("public.xml: bad id %q for %s", p.ID, p.Name)
		}
		out = append(out, publicEntry{Type: p.Type, Name: p.Name, OID: strconv.FormatInt(n, 10)})
	}
	return out, nil
}

// parseStrings returns the text of each string resource, inner markup
// flattened. Items of type string are included when their text is not
// empty.
func parseStrings(path string) (map[string]string, error) {
	var doc struct {
		Strings []struct {
			Name  string `xml:"name,attr"`
			Inner string `xml:",innerxml"`
		} `xml:"string"`
		Items []struct {
			Name  string `xml:"name,attr"`
			Type  string `xml:"type,attr"`
			Inner string `xml:",innerxml"`
		} `xml:"item"`
	}
	out := make(map[string]string)
	if err := readXML(path, &doc); err != nil {
		return nil, err
	}
	for _, s := range doc.Strings {
		if s.Name != "" {
			out[s.Name] = innerText(s.Inner)
		}
	}
	for _, it := range doc.Items {
		if it.Name != "" && it.Type == "string" {
			if t := innerText(it.Inner); t != "" {
				out[it.Name] = t
			}
		}
	}
	return out, nil
}

func innerText(inner string) string {
	dec := xml.NewDecoder(strings.NewReader("<x>" + inner + "</x>"))
	dec.Strict = false
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			b.Write(cd)
		}
	}
	return strings.TrimSpace(b.String())
}

// parseConstants reads constantInfo.csv and records where the app's own
// code references widget and layout ids.
func (i *Info) parseConstants(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read constants: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parse constants: %w", err)
	}
	col := make(map[string]int, len(header))
	for n, h := range header {
		col[strings.TrimSpace(h)] = n
	}
	for _, name := range []string{"constantId", "packageIn", "methodIn"} {
		if _, ok := col[name]; !ok {
			return fmt.Errorf("constants: missing column %s", name)
		}
	}
	field := func(rec []string, name string) string {
		if n := col[name]; n < len(rec) {
			return rec[n]
		}
		return ""
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse constants: %w", err)
		}
		oid, in := field(rec, "constantId"), field(rec, "packageIn")
		_, isWidget := i.oidToName[oid]
		_, isLayout := i.oidToLayout[oid]
		if strings.HasPrefix(in, i.Package) && (isWidget || isLayout) {
			i.oidToLoc[oid] = Location{
				Package:  i.Package,
				Activity: strings.Replace(in, i.Package, "", 1),
				Method:   field(rec, "methodIn"),
			}
		}
	}
}

type layoutFile struct {
	name     string
	includes []string
	widgets  []Widget
}

// parseLayouts reads every layout file concurrently, then attributes each
// widget to the outermost layout including it.
func (i *Info) parseLayouts(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read layouts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".xml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]layoutFile, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for n, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lf, err := i.parseLayout(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			files[n] = lf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	parent := make(map[string]string)
	for _, lf := range files {
		for _, child := range lf.includes {
			parent[child] = lf.name
		}
	}
	for _, lf := range files {
		mother := lf.name
		for seen := map[string]bool{mother: true}; ; {
			p, ok := parent[mother]
			if !ok || seen[p] {
				break
			}
			seen[p] = true
			mother = p
		}
		layoutOID, _ := i.LayoutOID(mother)
		for _, w := range lf.widgets {
			w.Layout, w.LayoutOID = mother, layoutOID
			loc := i.locate(w.OID, layoutOID)
			w.Package, w.Activity, w.Method = loc.Package, loc.Activity, loc.Method
			i.widgets = append(i.widgets, w)
		}
	}
	return nil
}

func (i *Info) parseLayout(path string) (layoutFile, error) {
	base := filepath.Base(path)
	lf := layoutFile{name: strings.SplitN(base, ".", 2)[0]}

	f, err := os.Open(path)
	if err != nil {
		return lf, fmt.Errorf("read layout %s: %w", base, err)
	}
	defer f.Close()

	byType := make(map[string][]Widget)
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return lf, fmt.Errorf("parse layout %s: %w", base, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "include" {
			if l := attr(se, "layout"); l != "" {
				lf.includes = append(lf.includes, i.Decode(l))
			}
			continue
		}
		if w, ok := i.layoutWidget(se); ok {
			byType[se.Name.Local] = append(byType[se.Name.Local], w)
		}
	}
	for _, t := range layoutTypes {
		lf.widgets = append(lf.widgets, byType[t]...)
	}
	return lf, nil
}

func (i *Info) layoutWidget(se xml.StartElement) (Widget, bool) {
	if !isLayoutType(se.Name.Local) {
		return Widget{}, false
	}
	w := Widget{Widget: core.Widget{Static: true}}
	found := false
	for _, a := range se.Attr {
		key, ok := layoutAttrs[a.Name.Local]
		if !ok {
			continue
		}
		found = true
		w.Set(key, w.Get(key)+i.Decode(a.Value))
	}
	if !found {
		return Widget{}, false
	}
	class := se.Name.Local
	if class == fabClass {
		class = "ImageButton"
	}
	w.Class = classPrefix + class
	if w.ResourceID != "" {
		w.OID, _ = i.WidgetOID(w.ResourceID)
	}
	return w, true
}

func isLayoutType(name string) bool {
	for _, t := range layoutTypes {
		if t == name {
			return true
		}
	}
	return false
}

// locate picks the code location of a widget from its own id or its
// layout's id. When both are known but name different classes, the one
// that looks like an activity wins.
func (i *Info) locate(widgetOID, layoutOID string) Location {
	fromW, okW := i.oidToLoc[widgetOID]
	fromL, okL := i.oidToLoc[layoutOID]
	switch {
	case okW && okL:
		cw, cl := outerClass(fromW.Activity), outerClass(fromL.Activity)
		if cw != cl && !looksLikeActivity(cw) && looksLikeActivity(cl) {
			return fromL
		}
		return fromW
	case okW:
		return fromW
	case okL:
		return fromL
	}
	return Location{}
}

func outerClass(act string) string {
	return strings.SplitN(act, "$", 2)[0]
}

func looksLikeActivity(class string) bool {
	return strings.Contains(class, "Activity") || strings.Contains(class, "activity")
}

func readXML(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
