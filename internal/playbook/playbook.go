// Package playbook defines the invocation document: the desired state, a list
// of config items and the task polling overrides.
package playbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// State selects whether the listed objects should exist or not.
type State string

const (
	StateMerged  State = "merged"
	StateDeleted State = "deleted"
)

// Document is one invocation.
type Document struct {
	State        State  `yaml:"state"`
	Config       []Item `yaml:"config"`
	ConfigVerify bool   `yaml:"config_verify"`

	// Seconds; zero means use the configured default.
	TaskTimeout  int `yaml:"dnac_api_task_timeout"`
	PollInterval int `yaml:"dnac_task_poll_interval"`
}

// Item is one config entry. Each key belongs to one domain.
type Item struct {
	FabricDevices    *FabricDevices    `yaml:"fabric_devices,omitempty"`
	FabricVLANs      []FabricVLAN      `yaml:"fabric_vlan,omitempty"`
	VirtualNetworks  []VirtualNetwork  `yaml:"virtual_networks,omitempty"`
	AnycastGateways  []AnycastGateway  `yaml:"anycast_gateways,omitempty"`
	FabricMulticast  []FabricMulticast `yaml:"fabric_multicast,omitempty"`
	InventoryDevices *InventoryDevices `yaml:"inventory_devices,omitempty"`
}

// Timeout returns the per-task timeout, or def when unset.
func (d *Document) Timeout(def time.Duration) time.Duration {
	if d.TaskTimeout > 0 {
		return time.Duration(d.TaskTimeout) * time.Second
	}
	return def
}

// Interval returns the task poll interval, or def when unset.
func (d *Document) Interval(def time.Duration) time.Duration {
	if d.PollInterval > 0 {
		return time.Duration(d.PollInterval) * time.Second
	}
	return def
}

// Load reads a playbook from a YAML or JSON file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}
	return Parse(data)
}

// Parse decodes a playbook. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("playbook is empty")
		}
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}

	if doc.State == "" {
		doc.State = StateMerged
	}
	if doc.State != StateMerged && doc.State != StateDeleted {
		return nil, fmt.Errorf("state must be one of merged, deleted; got %q", doc.State)
	}
	if len(doc.Config) == 0 {
		return nil, fmt.Errorf("config must contain at least one item")
	}
	if doc.TaskTimeout < 0 || doc.PollInterval < 0 {
		return nil, fmt.Errorf("dnac_api_task_timeout and dnac_task_poll_interval must not be negative")
	}
	return &doc, nil
}
