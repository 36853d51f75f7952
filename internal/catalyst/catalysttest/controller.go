package catalysttest

// Controller is a Fake with every collection the reconcilers read and write.
type Controller struct {
	*Fake

	Sites         *Collection
	FabricSites   *Collection
	FabricZones   *Collection
	Transits      *Collection
	Devices       *Collection
	Provisioned   *Collection
	Pools         *Collection
	UDFs          *Collection
	FabricDevices *Collection
	L2Handoffs    *Collection
	L3IPHandoffs  *Collection
	L3SDAHandoffs *Collection
	L2VNs         *Collection
	L3VNs         *Collection
	Gateways      *Collection
	Multicast     *Collection
	MulticastVNs  *Collection
}

// NewController returns an empty fake controller.
func NewController() *Controller {
	f := New()
	c := &Controller{Fake: f}

	c.Sites = f.Collection("site", CollectionSpec{
		Get:     "sites.get_sites",
		Filters: map[string]string{"nameHierarchy": "nameHierarchy"},
	})
	c.FabricSites = f.Collection("fabric-site", CollectionSpec{
		Get:     "sda.get_fabric_sites",
		Filters: map[string]string{"siteId": "siteId", "id": "id"},
	})
	c.FabricZones = f.Collection("fabric-zone", CollectionSpec{
		Get:     "sda.get_fabric_zones",
		Filters: map[string]string{"siteId": "siteId", "id": "id"},
	})
	c.Transits = f.Collection("transit", CollectionSpec{
		Get:     "sda.get_transit_networks",
		Filters: map[string]string{"name": "name", "id": "id"},
	})
	c.Devices = f.Collection("device", CollectionSpec{
		Get:    "devices.get_device_list",
		Add:    "devices.add_device",
		Delete: "devices.delete_device_by_id",
		Filters: map[string]string{
			"managementIpAddress": "managementIpAddress",
			"hostname":            "hostname",
			"serialNumber":        "serialNumber",
			"macAddress":          "macAddress",
			"id":                  "id",
		},
	})
	c.Provisioned = f.Collection("provision", CollectionSpec{
		Get:     "sda.get_provisioned_devices",
		Add:     "sda.provision_devices",
		Filters: map[string]string{"networkDeviceId": "networkDeviceId", "siteId": "siteId"},
	})
	c.Pools = f.Collection("pool", CollectionSpec{
		Get:     "network_settings.get_reserve_ip_subpool",
		Filters: map[string]string{"siteId": "siteId"},
	})
	c.UDFs = f.Collection("udf", CollectionSpec{
		Get:     "devices.get_all_user_defined_fields",
		Add:     "devices.create_user_defined_field",
		Delete:  "devices.delete_user_defined_field",
		Filters: map[string]string{"name": "name", "id": "id"},
	})
	c.FabricDevices = f.Collection("fabric-device", CollectionSpec{
		Get:     "sda.get_fabric_devices",
		Add:     "sda.add_fabric_devices",
		Update:  "sda.update_fabric_devices",
		Delete:  "sda.delete_fabric_device_by_id",
		Filters: map[string]string{"fabricId": "fabricId", "networkDeviceId": "networkDeviceId"},
	})
	c.L2Handoffs = f.Collection("l2-handoff", CollectionSpec{
		Get:     "sda.get_fabric_devices_layer2_handoffs",
		Add:     "sda.add_fabric_devices_layer2_handoffs",
		Delete:  "sda.delete_fabric_device_layer2_handoff_by_id",
		Filters: map[string]string{"fabricId": "fabricId", "networkDeviceId": "networkDeviceId"},
	})
	c.L3IPHandoffs = f.Collection("l3-ip-handoff", CollectionSpec{
		Get:     "sda.get_fabric_devices_layer3_handoffs_with_ip_transit",
		Add:     "sda.add_fabric_devices_layer3_handoffs_with_ip_transit",
		Update:  "sda.update_fabric_devices_layer3_handoffs_with_ip_transit",
		Delete:  "sda.delete_fabric_device_layer3_handoff_with_ip_transit_by_id",
		Filters: map[string]string{"fabricId": "fabricId", "networkDeviceId": "networkDeviceId"},
	})
	c.L3SDAHandoffs = f.Collection("l3-sda-handoff", CollectionSpec{
		Get:           "sda.get_fabric_devices_layer3_handoffs_with_sda_transit",
		Add:           "sda.add_fabric_devices_layer3_handoffs_with_sda_transit",
		Update:        "sda.update_fabric_devices_layer3_handoffs_with_sda_transit",
		Delete:        "sda.delete_fabric_device_layer3_handoffs_with_sda_transit",
		DeleteByQuery: true,
		Key:           "networkDeviceId",
		Filters:       map[string]string{"fabricId": "fabricId", "networkDeviceId": "networkDeviceId"},
	})
	c.L2VNs = f.Collection("l2-vn", CollectionSpec{
		Get:     "sda.get_layer2_virtual_networks",
		Add:     "sda.add_layer2_virtual_networks",
		Update:  "sda.update_layer2_virtual_networks",
		Delete:  "sda.delete_layer2_virtual_network_by_id",
		Filters: map[string]string{"fabricId": "fabricId", "vlanName": "vlanName", "vlanId": "vlanId"},
	})
	c.L3VNs = f.Collection("l3-vn", CollectionSpec{
		Get:           "sda.get_layer3_virtual_networks",
		Add:           "sda.add_layer3_virtual_networks",
		Update:        "sda.update_layer3_virtual_networks",
		Delete:        "sda.delete_layer3_virtual_networks",
		DeleteByQuery: true,
		Key:           "virtualNetworkName",
		Filters:       map[string]string{"virtualNetworkName": "virtualNetworkName"},
	})
	c.Gateways = f.Collection("anycast", CollectionSpec{
		Get:    "sda.get_anycast_gateways",
		Add:    "sda.add_anycast_gateways",
		Update: "sda.update_anycast_gateways",
		Delete: "sda.delete_anycast_gateway_by_id",
		Filters: map[string]string{
			"fabricId":           "fabricId",
			"virtualNetworkName": "virtualNetworkName",
			"ipPoolName":         "ipPoolName",
		},
	})
	c.Multicast = f.Collection("multicast", CollectionSpec{
		Get:     "sda.get_multicast",
		Update:  "sda.update_multicast",
		Key:     "fabricId",
		Filters: map[string]string{"fabricId": "fabricId"},
	})
	c.MulticastVNs = f.Collection("multicast-vn", CollectionSpec{
		Get:     "sda.get_multicast_virtual_networks",
		Add:     "sda.add_multicast_virtual_networks",
		Update:  "sda.update_multicast_virtual_networks",
		Delete:  "sda.delete_multicast_virtual_network_by_id",
		Filters: map[string]string{"fabricId": "fabricId", "virtualNetworkName": "virtualNetworkName"},
	})
	return c
}

// AddSite seeds a site and returns its id.
func (c *Controller) AddSite(name string) string {
	c.Sites.Seed(map[string]any{"nameHierarchy": name})
	items := c.Sites.Items()
	return items[len(items)-1]["id"].(string)
}

// AddFabricSite seeds a site configured as a fabric site.
func (c *Controller) AddFabricSite(name string) (siteID, fabricID string) {
	siteID = c.AddSite(name)
	c.FabricSites.Seed(map[string]any{"siteId": siteID})
	items := c.FabricSites.Items()
	return siteID, items[len(items)-1]["id"].(string)
}

// AddFabricZone seeds a site configured as a fabric zone.
func (c *Controller) AddFabricZone(name string) (siteID, zoneID string) {
	siteID = c.AddSite(name)
	c.FabricZones.Seed(map[string]any{"siteId": siteID})
	items := c.FabricZones.Items()
	return siteID, items[len(items)-1]["id"].(string)
}

// AddDevice seeds an inventory device and returns its id.
func (c *Controller) AddDevice(ip, hostname string) string {
	c.Devices.Seed(map[string]any{
		"managementIpAddress": ip,
		"hostname":            hostname,
		"macAddress":          "00:00:00:00:00:0" + ip[len(ip)-1:],
		"serialNumber":        "SN-" + hostname,
		"family":              "Switches and Hubs",
		"reachabilityStatus":  "Reachable",
	})
	items := c.Devices.Items()
	return items[len(items)-1]["id"].(string)
}

// AddTransit seeds a transit network and returns its id.
func (c *Controller) AddTransit(name, typ string) string {
	c.Transits.Seed(map[string]any{"name": name, "type": typ})
	items := c.Transits.Items()
	return items[len(items)-1]["id"].(string)
}

// AddPool seeds a reserved pool under siteID.
func (c *Controller) AddPool(siteID, name string) {
	c.Pools.Seed(map[string]any{"siteId": siteID, "groupName": name})
}

// AddL3VN seeds a Layer-3 virtual network.
func (c *Controller) AddL3VN(name string, fabricIDs ...string) {
	ids := make([]any, len(fabricIDs))
	for i, id := range fabricIDs {
		ids[i] = id
	}
	c.L3VNs.Seed(map[string]any{"virtualNetworkName": name, "fabricIds": ids})
}

// Provision marks a device as provisioned to a site.
func (c *Controller) Provision(deviceID, siteID string) {
	c.Provisioned.Seed(map[string]any{"networkDeviceId": deviceID, "siteId": siteID})
}
