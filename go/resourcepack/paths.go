package resourcepack

import (
	"regexp"
	"strings"
)

const DefaultNamespace = "minecraft"

var assetRe = regexp.MustCompile(`^assets/([\w.-]+)/(\w+)/(.*?)\.(\w+)$`)

// AssetPath is a parsed "assets/<ns>/<kind>/<name>.<ext>" path.
type AssetPath struct {
	Namespace string
	Kind      string
	Name      string
	Ext       string
}

func ParseAssetPath(p string) (AssetPath, bool) {
	m := assetRe.FindStringSubmatch(p)
	if m == nil {
		return AssetPath{}, false
	}
	return AssetPath{Namespace: m[1], Kind: m[2], Name: m[3], Ext: m[4]}, true
}

// Ref is the namespaced reference form, e.g. minecraft:block/stone.
func (a AssetPath) Ref() string {
	return a.Namespace + ":" + a.Name
}

// Canonical adds the default namespace to a bare reference.
func Canonical(ref string) string {
	if strings.IndexByte(ref, ':') < 0 {
		return DefaultNamespace + ":" + ref
	}
	return ref
}

func RemoveDefaultPrefix(ref string) string {
	return strings.TrimPrefix(ref, DefaultNamespace+":")
}

func splitRef(ref string) (ns, name string) {
	ns, name, _ = strings.Cut(Canonical(ref), ":")
	return ns, name
}

func assetPath(kind, ext, ref string) string {
	ns, name := splitRef(ref)
	return "assets/" + ns + "/" + kind + "/" + name + "." + ext
}

func BlockStatePath(block string) string { return assetPath("blockstates", "json", block) }
func ModelPath(ref string) string        { return assetPath("models", "json", ref) }
func TexturePath(ref string) string      { return assetPath("textures", "png", ref) }
