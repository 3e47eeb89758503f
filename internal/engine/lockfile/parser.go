package lockfile

import (
	"strings"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/zerr"
)

// line is a non-blank line of lockfile text with its 1-based position.
type line struct {
	no   int
	text string
}

// placeholder is a manifest as written in the lockfile, before dependency targets are known.
type placeholder struct {
	at       line
	source   domain.Source
	name     string
	version  string
	depNames []string
	depReqs  map[string][]string
}

// Parse reads lockfile text into a Resolution. Manifest dependencies and root dependencies are
// bound to the source of the manifest they name, and manifests are returned in install order.
func (l *Lockfile) Parse(text string) (*domain.Resolution, error) {
	p := &parser{lockfile: l, lines: splitLines(text)}

	placeholders, err := p.sourceBlocks()
	if err != nil {
		return nil, err
	}
	rootLines, err := p.dependencies()
	if err != nil {
		return nil, err
	}
	return resolve(placeholders, rootLines)
}

func splitLines(text string) []line {
	var out []line
	for i, raw := range strings.Split(text, "\n") {
		t := strings.TrimRight(raw, " \t\r")
		if t == "" {
			continue
		}
		out = append(out, line{no: i + 1, text: t})
	}
	return out
}

type parser struct {
	lockfile *Lockfile
	lines    []line
	pos      int
}

func (p *parser) peek() (line, bool) {
	if p.pos >= len(p.lines) {
		return line{}, false
	}
	return p.lines[p.pos], true
}

func (p *parser) sourceBlocks() ([]*placeholder, error) {
	var out []*placeholder
	for {
		header, ok := p.peek()
		if !ok {
			return nil, zerr.Wrap(domain.ErrMissingDependenciesMarker, "lockfile ends without dependencies")
		}
		if header.text == dependenciesMarker {
			p.pos++
			return out, nil
		}
		if strings.HasPrefix(header.text, " ") {
			return nil, lineError(domain.ErrParse, "expected a source header", header.no, header.text)
		}
		block, err := p.sourceBlock(header)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
}

func (p *parser) sourceBlock(header line) ([]*placeholder, error) {
	idx := p.lockfile.typeIndex(header.text)
	if idx < 0 {
		return nil, lineError(domain.ErrUnknownSourceType, "unknown source type", header.no, header.text)
	}
	p.pos++

	options := map[string]string{}
	for {
		l, ok := p.peek()
		if !ok || !isLevel(l.text, optionIndent) || l.text == optionIndent+specsMarker+":" {
			break
		}
		key, value, found := strings.Cut(strings.TrimPrefix(l.text, optionIndent), ": ")
		if !found || key == "" || strings.ContainsAny(key, " \t") {
			return nil, lineError(domain.ErrParse, "expected a source option", l.no, l.text)
		}
		if _, dup := options[key]; dup {
			return nil, lineError(domain.ErrParse, "duplicate source option", l.no, l.text)
		}
		options[key] = value
		p.pos++
	}

	specs, ok := p.peek()
	if !ok || specs.text != optionIndent+specsMarker+":" {
		return nil, lineError(domain.ErrParse, "expected specs marker", header.no, header.text)
	}
	p.pos++

	src, err := p.lockfile.types[idx].FromLockOptions(options)
	if err != nil {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrParse, err.Error()), "line", header.no), "type", header.text)
	}

	var out []*placeholder
	for {
		l, ok := p.peek()
		if !ok || !strings.HasPrefix(l.text, manifestIndent) {
			return out, nil
		}
		switch {
		case isLevel(l.text, manifestIndent):
			name, version, ok := splitEntry(strings.TrimPrefix(l.text, manifestIndent))
			if !ok || version == "" {
				return nil, lineError(domain.ErrParse, "expected \"name (version)\"", l.no, l.text)
			}
			out = append(out, &placeholder{at: l, source: src, name: name, version: version, depReqs: map[string][]string{}})
		case isLevel(l.text, dependencyIndent) && len(out) > 0:
			name, req, ok := splitEntry(strings.TrimPrefix(l.text, dependencyIndent))
			if !ok {
				return nil, lineError(domain.ErrParse, "expected \"name (requirement)\"", l.no, l.text)
			}
			current := out[len(out)-1]
			if _, seen := current.depReqs[name]; !seen {
				current.depNames = append(current.depNames, name)
			}
			current.depReqs[name] = append(current.depReqs[name], req)
		default:
			return nil, lineError(domain.ErrParse, "unexpected indentation", l.no, l.text)
		}
		p.pos++
	}
}

func (p *parser) dependencies() ([]line, error) {
	var out []line
	for ; p.pos < len(p.lines); p.pos++ {
		l := p.lines[p.pos]
		if !strings.HasPrefix(l.text, " ") {
			return nil, lineError(domain.ErrMissingDependenciesMarker, "source block after dependencies", l.no, l.text)
		}
		if !isLevel(l.text, optionIndent) {
			return nil, lineError(domain.ErrParse, "unexpected indentation", l.no, l.text)
		}
		out = append(out, l)
	}
	return out, nil
}

// isLevel reports whether text is indented by exactly indent.
func isLevel(text, indent string) bool {
	return strings.HasPrefix(text, indent) && !strings.HasPrefix(text[len(indent):], " ")
}

// splitEntry splits "name (detail)" into its parts. A bare "name" has an empty detail.
func splitEntry(text string) (name, detail string, ok bool) {
	i := strings.LastIndex(text, " (")
	if i < 0 || !strings.HasSuffix(text, ")") {
		return text, "", domain.ValidateName(text) == nil
	}
	name, detail = text[:i], text[i+2:len(text)-1]
	return name, detail, domain.ValidateName(name) == nil
}

// resolve turns placeholders into manifests whose dependencies point at the source of the
// manifest they name, and binds the root dependencies the same way.
func resolve(placeholders []*placeholder, rootLines []line) (*domain.Resolution, error) {
	byName := make(map[string]*placeholder, len(placeholders))
	for _, ph := range placeholders {
		if _, dup := byName[ph.name]; dup {
			return nil, zerr.With(lineError(domain.ErrParse, "duplicate manifest", ph.at.no, ph.at.text), "manifest", ph.name)
		}
		byName[ph.name] = ph
	}

	manifests := make([]*domain.Manifest, 0, len(placeholders))
	for _, ph := range placeholders {
		version, err := domain.ParseVersion(ph.version)
		if err != nil {
			return nil, zerr.With(lineError(domain.ErrParse, "invalid version", ph.at.no, ph.at.text), "cause", err.Error())
		}
		deps := make([]*domain.Dependency, 0, len(ph.depNames))
		for _, name := range ph.depNames {
			d, err := bind(byName, name, ph.depReqs[name], ph.at)
			if err != nil {
				return nil, err
			}
			deps = append(deps, d)
		}
		m, err := domain.NewFixedManifest(ph.source, ph.name, version, deps)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}

	roots := make([]*domain.Dependency, 0, len(rootLines))
	for _, l := range rootLines {
		name, req, ok := splitEntry(strings.TrimPrefix(l.text, optionIndent))
		if !ok {
			return nil, lineError(domain.ErrParse, "expected \"name\" or \"name (requirement)\"", l.no, l.text)
		}
		d, err := bind(byName, name, []string{req}, l)
		if err != nil {
			return nil, err
		}
		roots = append(roots, d)
	}

	sorted, err := domain.SortManifests(manifests)
	if err != nil {
		return nil, err
	}
	return domain.NewResolution(roots, sorted), nil
}

func bind(byName map[string]*placeholder, name string, reqs []string, at line) (*domain.Dependency, error) {
	target, ok := byName[name]
	if !ok {
		return nil, zerr.With(lineError(domain.ErrParse, "dependency names no locked manifest", at.no, at.text),
			"dependency", name)
	}
	req, err := domain.ParseRequirement(reqs...)
	if err != nil {
		return nil, zerr.With(lineError(domain.ErrParse, "invalid requirement", at.no, at.text), "cause", err.Error())
	}
	return domain.NewDependency(name, req, target.source)
}
