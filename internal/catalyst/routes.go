package catalyst

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// route maps a logical family.function pair onto an HTTP endpoint.
// Path segments written as {name} are filled from params of the same name.
type route struct {
	method string
	path   string
}

const (
	intentV1 = "/dna/intent/api/v1"
)

var routes = map[string]route{
	// Sites and inventory
	"sites.get_sites":                               {http.MethodGet, intentV1 + "/sites"},
	"devices.get_device_list":                       {http.MethodGet, intentV1 + "/network-device"},
	"devices.add_device":                            {http.MethodPost, intentV1 + "/network-device"},
	"devices.sync_devices":                          {http.MethodPut, intentV1 + "/network-device"},
	"devices.update_device_role":                    {http.MethodPut, intentV1 + "/network-device/brief"},
	"devices.delete_device_by_id":                   {http.MethodDelete, intentV1 + "/network-device/{id}"},
	"devices.sync_devices_using_forcesync":          {http.MethodPut, intentV1 + "/network-device/sync"},
	"devices.export_device_list":                    {http.MethodPost, intentV1 + "/network-device/file"},
	"devices.get_interface_details":                 {http.MethodGet, intentV1 + "/interface/network-device/{deviceId}/interface-name"},
	"devices.update_interface_details":              {http.MethodPut, intentV1 + "/interface/{interfaceUuid}"},
	"devices.get_all_user_defined_fields":           {http.MethodGet, intentV1 + "/network-device/user-defined-field"},
	"devices.create_user_defined_field":             {http.MethodPost, intentV1 + "/network-device/user-defined-field"},
	"devices.update_user_defined_field":             {http.MethodPut, intentV1 + "/network-device/user-defined-field/{id}"},
	"devices.delete_user_defined_field":             {http.MethodDelete, intentV1 + "/network-device/user-defined-field/{id}"},
	"devices.add_user_defined_field_to_device":      {http.MethodPut, intentV1 + "/network-device/{deviceId}/user-defined-field"},
	"devices.remove_user_defined_field_from_device": {http.MethodDelete, intentV1 + "/network-device/{deviceId}/user-defined-field"},
	"wireless.reboot_access_points":                 {http.MethodPost, intentV1 + "/device-reboot/apreboot"},
	"file.download_a_file_by_fileid":                {http.MethodGet, intentV1 + "/file/{fileId}"},
	"network_settings.get_reserve_ip_subpool":       {http.MethodGet, intentV1 + "/reserve-ip-subpool"},

	// Tasks
	"task.get_task_by_id":         {http.MethodGet, intentV1 + "/task/{taskId}"},
	"task.get_tasks_by_id":        {http.MethodGet, intentV1 + "/tasks/{id}"},
	"task.get_task_details_by_id": {http.MethodGet, intentV1 + "/tasks/{id}/detail"},

	// SDA fabric
	"sda.get_fabric_sites":           {http.MethodGet, intentV1 + "/sda/fabricSites"},
	"sda.get_fabric_zones":           {http.MethodGet, intentV1 + "/sda/fabricZones"},
	"sda.get_transit_networks":       {http.MethodGet, intentV1 + "/sda/transitNetworks"},
	"sda.get_provisioned_devices":    {http.MethodGet, intentV1 + "/sda/provisionDevices"},
	"sda.provision_devices":          {http.MethodPost, intentV1 + "/sda/provisionDevices"},
	"sda.get_fabric_devices":         {http.MethodGet, intentV1 + "/sda/fabricDevices"},
	"sda.add_fabric_devices":         {http.MethodPost, intentV1 + "/sda/fabricDevices"},
	"sda.update_fabric_devices":      {http.MethodPut, intentV1 + "/sda/fabricDevices"},
	"sda.delete_fabric_device_by_id": {http.MethodDelete, intentV1 + "/sda/fabricDevices/{id}"},

	"sda.get_fabric_devices_layer2_handoffs":        {http.MethodGet, intentV1 + "/sda/fabricDevices/layer2Handoffs"},
	"sda.add_fabric_devices_layer2_handoffs":        {http.MethodPost, intentV1 + "/sda/fabricDevices/layer2Handoffs"},
	"sda.delete_fabric_device_layer2_handoff_by_id": {http.MethodDelete, intentV1 + "/sda/fabricDevices/layer2Handoffs/{id}"},

	"sda.get_fabric_devices_layer3_handoffs_with_ip_transit":        {http.MethodGet, intentV1 + "/sda/fabricDevices/layer3Handoffs/ipTransits"},
	"sda.add_fabric_devices_layer3_handoffs_with_ip_transit":        {http.MethodPost, intentV1 + "/sda/fabricDevices/layer3Handoffs/ipTransits"},
	"sda.update_fabric_devices_layer3_handoffs_with_ip_transit":     {http.MethodPut, intentV1 + "/sda/fabricDevices/layer3Handoffs/ipTransits"},
	"sda.delete_fabric_device_layer3_handoff_with_ip_transit_by_id": {http.MethodDelete, intentV1 + "/sda/fabricDevices/layer3Handoffs/ipTransits/{id}"},

	"sda.get_fabric_devices_layer3_handoffs_with_sda_transit":    {http.MethodGet, intentV1 + "/sda/fabricDevices/layer3Handoffs/sdaTransits"},
	"sda.add_fabric_devices_layer3_handoffs_with_sda_transit":    {http.MethodPost, intentV1 + "/sda/fabricDevices/layer3Handoffs/sdaTransits"},
	"sda.update_fabric_devices_layer3_handoffs_with_sda_transit": {http.MethodPut, intentV1 + "/sda/fabricDevices/layer3Handoffs/sdaTransits"},
	"sda.delete_fabric_device_layer3_handoffs_with_sda_transit":  {http.MethodDelete, intentV1 + "/sda/fabricDevices/layer3Handoffs/sdaTransits"},

	"sda.get_layer2_virtual_networks":         {http.MethodGet, intentV1 + "/sda/layer2VirtualNetworks"},
	"sda.add_layer2_virtual_networks":         {http.MethodPost, intentV1 + "/sda/layer2VirtualNetworks"},
	"sda.update_layer2_virtual_networks":      {http.MethodPut, intentV1 + "/sda/layer2VirtualNetworks"},
	"sda.delete_layer2_virtual_network_by_id": {http.MethodDelete, intentV1 + "/sda/layer2VirtualNetworks/{id}"},

	"sda.get_layer3_virtual_networks":    {http.MethodGet, intentV1 + "/sda/layer3VirtualNetworks"},
	"sda.add_layer3_virtual_networks":    {http.MethodPost, intentV1 + "/sda/layer3VirtualNetworks"},
	"sda.update_layer3_virtual_networks": {http.MethodPut, intentV1 + "/sda/layer3VirtualNetworks"},
	"sda.delete_layer3_virtual_networks": {http.MethodDelete, intentV1 + "/sda/layer3VirtualNetworks"},

	"sda.get_anycast_gateways":         {http.MethodGet, intentV1 + "/sda/anycastGateways"},
	"sda.add_anycast_gateways":         {http.MethodPost, intentV1 + "/sda/anycastGateways"},
	"sda.update_anycast_gateways":      {http.MethodPut, intentV1 + "/sda/anycastGateways"},
	"sda.delete_anycast_gateway_by_id": {http.MethodDelete, intentV1 + "/sda/anycastGateways/{id}"},

	"sda.get_multicast":                          {http.MethodGet, intentV1 + "/sda/multicast"},
	"sda.update_multicast":                       {http.MethodPut, intentV1 + "/sda/multicast"},
	"sda.get_multicast_virtual_networks":         {http.MethodGet, intentV1 + "/sda/multicast/virtualNetworks"},
	"sda.add_multicast_virtual_networks":         {http.MethodPost, intentV1 + "/sda/multicast/virtualNetworks"},
	"sda.update_multicast_virtual_networks":      {http.MethodPut, intentV1 + "/sda/multicast/virtualNetworks"},
	"sda.delete_multicast_virtual_network_by_id": {http.MethodDelete, intentV1 + "/sda/multicast/virtualNetworks/{id}"},
}

// PayloadParam is the params key whose value is sent as the JSON request body.
const PayloadParam = "payload"

// lookup returns the route for family.function.
func lookup(family, function string) (route, error) {
	r, ok := routes[family+"."+function]
	if !ok {
		return route{}, fmt.Errorf("catalyst: unknown function %s.%s", family, function)
	}
	return r, nil
}

// build expands the path template and splits params into query and body.
func (r route) build(params Params) (path string, query url.Values, body any, err error) {
	path = r.path
	query = url.Values{}
	used := make(map[string]bool)

	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return "", nil, nil, fmt.Errorf("catalyst: malformed path template %q", r.path)
		}
		name := path[start+1 : start+end]
		v, ok := params[name]
		if !ok || fmt.Sprint(v) == "" {
			return "", nil, nil, fmt.Errorf("catalyst: missing path parameter %q for %s", name, r.path)
		}
		path = path[:start] + url.PathEscape(fmt.Sprint(v)) + path[start+end+1:]
		used[name] = true
	}

	for k, v := range params {
		if used[k] {
			continue
		}
		if k == PayloadParam {
			body = v
			continue
		}
		switch tv := v.(type) {
		case nil:
		case []string:
			for _, s := range tv {
				query.Add(k, s)
			}
		default:
			query.Set(k, fmt.Sprint(tv))
		}
	}
	return path, query, body, nil
}
