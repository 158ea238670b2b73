package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/switchyard-lab/switchyard/pkg/util"
)

// Load reads the device catalog file and flattens it into catalog order.
// Subtrees with non-scalar vendor/model/version keys are skipped with a
// warning; devices missing serial or management IP, or carrying an
// unparseable port, are skipped with an error log.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse flattens catalog YAML. Entry order follows document order, which is
// the order reservation candidates are tried in.
func Parse(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing catalog: root is not a mapping")
	}

	if legacy := mappingValue(root, "vendors"); legacy != nil {
		return parseVendorList(legacy), nil
	}
	return parseVendorTree(root), nil
}

// parseVendorTree handles the current form: vendor -> model -> version -> devices.
func parseVendorTree(root *yaml.Node) []Entry {
	var entries []Entry
	forEachPair(root, func(vendorKey, models *yaml.Node) {
		vendor, ok := scalarKey(vendorKey)
		if !ok || models.Kind != yaml.MappingNode {
			util.Warnf("catalog: skipping malformed vendor subtree at line %d", vendorKey.Line)
			return
		}
		forEachPair(models, func(modelKey, versions *yaml.Node) {
			model, ok := scalarKey(modelKey)
			if !ok || versions.Kind != yaml.MappingNode {
				util.Warnf("catalog: skipping malformed model subtree under %s at line %d", vendor, modelKey.Line)
				return
			}
			forEachPair(versions, func(versionKey, body *yaml.Node) {
				version, ok := scalarKey(versionKey)
				if !ok {
					util.Warnf("catalog: skipping malformed version key under %s/%s at line %d", vendor, model, versionKey.Line)
					return
				}
				entries = append(entries, parseDevices(vendor, model, version, body)...)
			})
		})
	})
	return entries
}

// parseVendorList handles the older list form:
//
//	vendors:
//	  - vendor: cisco
//	    models:
//	      - model: n9k
//	        versions:
//	          - version: "9.3"
//	            devices: [...]
func parseVendorList(vendors *yaml.Node) []Entry {
	var entries []Entry
	if vendors.Kind != yaml.SequenceNode {
		util.Warnf("catalog: 'vendors' is not a list, ignoring")
		return nil
	}
	for _, v := range vendors.Content {
		vendor := scalarField(v, "vendor")
		if vendor == "" {
			util.Warnf("catalog: skipping vendor list item without 'vendor' at line %d", v.Line)
			continue
		}
		models := mappingValue(v, "models")
		if models == nil || models.Kind != yaml.SequenceNode {
			util.Warnf("catalog: vendor %s has no 'models' list", vendor)
			continue
		}
		for _, m := range models.Content {
			model := scalarField(m, "model")
			if model == "" {
				util.Warnf("catalog: skipping model list item under %s at line %d", vendor, m.Line)
				continue
			}
			versions := mappingValue(m, "versions")
			if versions == nil || versions.Kind != yaml.SequenceNode {
				util.Warnf("catalog: model %s/%s has no 'versions' list", vendor, model)
				continue
			}
			for _, ver := range versions.Content {
				version := scalarField(ver, "version")
				if version == "" {
					util.Warnf("catalog: skipping version list item under %s/%s at line %d", vendor, model, ver.Line)
					continue
				}
				entries = append(entries, parseDevices(vendor, model, version, mappingValue(ver, "devices"))...)
			}
		}
	}
	return entries
}

// parseDevices accepts either a device sequence directly or a mapping with a
// "devices" key holding the sequence.
func parseDevices(vendor, model, version string, body *yaml.Node) []Entry {
	if body == nil {
		return nil
	}
	devices := body
	if body.Kind == yaml.MappingNode {
		devices = mappingValue(body, "devices")
	}
	if devices == nil || devices.Kind != yaml.SequenceNode {
		util.Warnf("catalog: no device list under %s/%s/%s", vendor, model, version)
		return nil
	}

	var entries []Entry
	for _, d := range devices.Content {
		dev, err := parseDevice(d)
		if err != nil {
			util.Errorf("catalog: bad device entry under %s/%s/%s: %v", vendor, model, version, err)
			continue
		}
		entries = append(entries, Entry{
			Vendor:  vendor,
			Model:   model,
			Version: version,
			Device:  dev,
		})
	}
	return entries
}

func parseDevice(node *yaml.Node) (Device, error) {
	if node.Kind != yaml.MappingNode {
		return Device{}, fmt.Errorf("device entry at line %d is not a mapping", node.Line)
	}

	dev := Device{Port: DefaultPort}

	// Both field spellings appear in the wild: serial/serial_number and mgmt_ip/ip.
	dev.Serial = firstScalarField(node, "serial", "serial_number")
	dev.MgmtIP = firstScalarField(node, "mgmt_ip", "ip")
	dev.Hostname = scalarField(node, "hostname")
	dev.DefaultGateway = scalarField(node, "default_gateway")
	dev.Netmask = scalarField(node, "netmask")

	if dev.Serial == "" {
		return Device{}, fmt.Errorf("missing serial (line %d)", node.Line)
	}
	if dev.MgmtIP == "" {
		return Device{}, fmt.Errorf("missing mgmt_ip for %s (line %d)", dev.Serial, node.Line)
	}

	if raw := scalarField(node, "port"); raw != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Device{}, fmt.Errorf("unparseable port %q for %s", raw, dev.Serial)
		}
		dev.Port = port
	}

	return dev, nil
}

// forEachPair walks a mapping node's key/value pairs in document order.
func forEachPair(mapping *yaml.Node, fn func(key, value *yaml.Node)) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		fn(mapping.Content[i], mapping.Content[i+1])
	}
}

// scalarKey returns the text of a scalar mapping key. Unquoted version
// numbers (YAML floats) are kept verbatim, e.g. 9.3 -> "9.3".
func scalarKey(node *yaml.Node) (string, bool) {
	if node.Kind != yaml.ScalarNode || node.Value == "" {
		return "", false
	}
	return node.Value, true
}

// mappingValue returns the value node for a key, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func scalarField(mapping *yaml.Node, key string) string {
	v := mappingValue(mapping, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(v.Value)
}

func firstScalarField(mapping *yaml.Node, keys ...string) string {
	for _, key := range keys {
		if v := scalarField(mapping, key); v != "" {
			return v
		}
	}
	return ""
}
