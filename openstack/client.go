package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/util"

	"github.com/rs/zerolog"
)

const profileCapability = "capabilities:profile="

// Client answers undercloud questions through the openstack CLI.
type Client struct {
	runner  CommandRunner
	command string
	logger  zerolog.Logger
}

func New(runner CommandRunner, command string, logger zerolog.Logger) *Client {
	if command == "" {
		command = "openstack"
	}
	return &Client{runner: runner, command: command, logger: logger}
}

func (client *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	return client.runner.Run(ctx, client.command, args...)
}

// ProfileForFlavor returns the node profile a flavor is bound to, or an
// empty string when the flavor has no profile capability.
func (client *Client) ProfileForFlavor(ctx context.Context, flavor string) (string, error) {
	out, err := client.run(ctx, "flavor", "show", flavor, "-f", "json", "-c", "properties")
	if err != nil {
		return "", util.NewError(err, "cannot show flavor %s", flavor)
	}
	result := struct {
		Properties json.RawMessage `json:"properties"`
	}{}
	if err := json.Unmarshal(out, &result); err != nil {
		return "", util.NewError(err, "cannot parse flavor %s", flavor)
	}
	return parseProfile(result.Properties), nil
}

// parseProfile handles both the old string form of flavor properties
// ("capabilities:profile='compute', ...") and the newer object form.
func parseProfile(properties json.RawMessage) string {
	asMap := map[string]string{}
	if err := json.Unmarshal(properties, &asMap); err == nil {
		return asMap[strings.TrimSuffix(profileCapability, "=")]
	}
	asString := ""
	if err := json.Unmarshal(properties, &asString); err != nil {
		return ""
	}
	idx := strings.Index(asString, profileCapability)
	if idx < 0 {
		return ""
	}
	value := asString[idx+len(profileCapability):]
	if end := strings.IndexAny(value, ", "); end >= 0 {
		value = value[:end]
	}
	return strings.Trim(value, `'"`)
}

type profileEntry struct {
	NodeUuid       string `json:"Node UUID"`
	CurrentProfile string `json:"Current Profile"`
}

// NodeForFlavor returns the first node whose current profile matches the
// profile of flavor.
func (client *Client) NodeForFlavor(ctx context.Context, flavor string) (string, error) {
	profile, err := client.ProfileForFlavor(ctx, flavor)
	if err != nil {
		return "", err
	}
	if profile == "" {
		return "", fmt.Errorf("flavor %s has no profile", flavor)
	}
	out, err := client.run(ctx, "overcloud", "profiles", "list", "-f", "json")
	if err != nil {
		return "", util.NewError(err, "cannot list overcloud profiles")
	}
	profiles := []profileEntry{}
	if err := json.Unmarshal(out, &profiles); err != nil {
		return "", util.NewError(err, "cannot parse overcloud profiles")
	}
	for _, entry := range profiles {
		if entry.CurrentProfile == profile {
			return strings.TrimSpace(entry.NodeUuid), nil
		}
	}
	return "", fmt.Errorf("no node found with profile %s", profile)
}

func (client *Client) IntrospectionData(ctx context.Context, nodeUuid string) ([]byte, error) {
	out, err := client.run(ctx, "baremetal", "introspection", "data", "save", nodeUuid)
	if err != nil {
		return nil, util.NewError(err, "cannot get introspection data of node %s", nodeUuid)
	}
	return out, nil
}

// FlavorForRole reads Overcloud<Role>Flavor from the deployment plan
// environment.
func (client *Client) FlavorForRole(ctx context.Context, role string) (string, error) {
	out, err := client.runner.Run(ctx, "mistral", "run-action", "tripleo.parameters.get")
	if err != nil {
		return "", util.NewError(err, "cannot get deployment parameters")
	}
	result := struct {
		Result struct {
			MistralEnvironment map[string]interface{} `json:"mistral_environment_parameters"`
			Environment        map[string]interface{} `json:"environment_parameters"`
		} `json:"result"`
	}{}
	if err := json.Unmarshal(out, &result); err != nil {
		return "", util.NewError(err, "cannot parse deployment parameters")
	}
	env := result.Result.MistralEnvironment
	if len(env) == 0 {
		env = result.Result.Environment
	}
	key := "Overcloud" + role + "Flavor"
	flavor, _ := env[key].(string)
	if flavor == "" {
		return "", fmt.Errorf("parameter %s is not set for role %s", key, role)
	}
	return flavor, nil
}

type baremetalNode struct {
	Uuid         string `json:"UUID"`
	InstanceUuid string `json:"Instance UUID"`
}

// InstanceForNode maps a baremetal node to the overcloud server deployed
// on it.
func (client *Client) InstanceForNode(ctx context.Context, nodeUuid string) (string, error) {
	out, err := client.run(ctx, "baremetal", "node", "list", "-f", "json")
	if err != nil {
		return "", util.NewError(err, "cannot list baremetal nodes")
	}
	nodes := []baremetalNode{}
	if err := json.Unmarshal(out, &nodes); err != nil {
		return "", util.NewError(err, "cannot parse baremetal nodes")
	}
	for _, node := range nodes {
		if node.Uuid == nodeUuid {
			if node.InstanceUuid == "" {
				return "", fmt.Errorf("node %s is not deployed", nodeUuid)
			}
			return strings.TrimSpace(node.InstanceUuid), nil
		}
	}
	return "", fmt.Errorf("baremetal node %s not found", nodeUuid)
}

// HostAddress returns the ctlplane address of an overcloud server.
func (client *Client) HostAddress(ctx context.Context, instanceUuid string) (string, error) {
	out, err := client.run(ctx, "server", "show", instanceUuid, "-f", "json", "-c", "addresses")
	if err != nil {
		return "", util.NewError(err, "cannot show server %s", instanceUuid)
	}
	result := struct {
		Addresses json.RawMessage `json:"addresses"`
	}{}
	if err := json.Unmarshal(out, &result); err != nil {
		return "", util.NewError(err, "cannot parse server %s", instanceUuid)
	}
	address := parseCtlplaneAddress(result.Addresses)
	if address == "" {
		return "", fmt.Errorf("server %s has no ctlplane address", instanceUuid)
	}
	return address, nil
}

func parseCtlplaneAddress(addresses json.RawMessage) string {
	asMap := map[string][]string{}
	if err := json.Unmarshal(addresses, &asMap); err == nil {
		if ips := asMap["ctlplane"]; len(ips) > 0 {
			return ips[0]
		}
		return ""
	}
	asString := ""
	if err := json.Unmarshal(addresses, &asString); err != nil {
		return ""
	}
	for _, network := range strings.Split(asString, ";") {
		name, ips, ok := strings.Cut(strings.TrimSpace(network), "=")
		if ok && name == "ctlplane" {
			return strings.TrimSpace(strings.Split(ips, ",")[0])
		}
	}
	return ""
}

// NodeForRequest resolves the baremetal node a request targets.
func (client *Client) NodeForRequest(ctx context.Context, request *compute.Request) (string, error) {
	if request.NodeUuid != "" {
		return request.NodeUuid, nil
	}
	if request.Flavor == "" {
		return "", util.NewError(compute.ErrInvalidUserInput, "flavor or node_uuid is required")
	}
	return client.NodeForFlavor(ctx, request.Flavor)
}

// Get fetches and parses the introspection data of the node a request
// targets.
func (client *Client) Get(ctx context.Context, request *compute.Request) (*compute.HardwareFacts, error) {
	nodeUuid, err := client.NodeForRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	client.logger.Info().Str("node", nodeUuid).Msg("fetching introspection data")
	content, err := client.IntrospectionData(ctx, nodeUuid)
	if err != nil {
		return nil, err
	}
	return compute.ParseIntrospection(content)
}

// HostAddressForRequest resolves the ctlplane address of the deployed node
// a request targets.
func (client *Client) HostAddressForRequest(ctx context.Context, request *compute.Request) (string, error) {
	nodeUuid, err := client.NodeForRequest(ctx, request)
	if err != nil {
		return "", err
	}
	instanceUuid, err := client.InstanceForNode(ctx, nodeUuid)
	if err != nil {
		return "", err
	}
	return client.HostAddress(ctx, instanceUuid)
}
