// Package gcp adapts the uniform cloud operations onto the Google Compute
// Engine API. The uniform "region" parameter maps to a GCE zone, and the
// uniform instance identifier is the instance name, which is the key the
// compute API itself operates on.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
	"github.com/Riley94/multi-cloud-manager/internal/config"
)

const (
	defaultImage   = "projects/debian-cloud/global/images/family/debian-12"
	defaultNetwork = "global/networks/default"
)

// Client implements cloud.ComputeService against GCE.
type Client struct {
	instances instancesAPI
	project   string
}

// instancesAPI is the slice of compute.InstancesService the adapter uses;
// tests substitute a fake backed by an httptest server instead, so this
// stays an internal seam around the generated client.
type instancesAPI interface {
	List(ctx context.Context, project, zone string) (*compute.InstanceList, error)
	Get(ctx context.Context, project, zone, name string) (*compute.Instance, error)
	Insert(ctx context.Context, project, zone string, inst *compute.Instance) (*compute.Operation, error)
	Delete(ctx context.Context, project, zone, name string) (*compute.Operation, error)
	Stop(ctx context.Context, project, zone, name string) (*compute.Operation, error)
	Start(ctx context.Context, project, zone, name string) (*compute.Operation, error)
	SetMachineType(ctx context.Context, project, zone, name string, req *compute.InstancesSetMachineTypeRequest) (*compute.Operation, error)
	SetLabels(ctx context.Context, project, zone, name string, req *compute.InstancesSetLabelsRequest) (*compute.Operation, error)
	SetMetadata(ctx context.Context, project, zone, name string, md *compute.Metadata) (*compute.Operation, error)
}

type instancesService struct {
	svc *compute.Service
}

func (s *instancesService) List(ctx context.Context, project, zone string) (*compute.InstanceList, error) {
	return s.svc.Instances.List(project, zone).Context(ctx).Do()
}
func (s *instancesService) Get(ctx context.Context, project, zone, name string) (*compute.Instance, error) {
	return s.svc.Instances.Get(project, zone, name).Context(ctx).Do()
}
func (s *instancesService) Insert(ctx context.Context, project, zone string, inst *compute.Instance) (*compute.Operation, error) {
	return s.svc.Instances.Insert(project, zone, inst).Context(ctx).Do()
}
func (s *instancesService) Delete(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	return s.svc.Instances.Delete(project, zone, name).Context(ctx).Do()
}
func (s *instancesService) Stop(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	return s.svc.Instances.Stop(project, zone, name).Context(ctx).Do()
}
func (s *instancesService) Start(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	return s.svc.Instances.Start(project, zone, name).Context(ctx).Do()
}
func (s *instancesService) SetMachineType(ctx context.Context, project, zone, name string, req *compute.InstancesSetMachineTypeRequest) (*compute.Operation, error) {
	return s.svc.Instances.SetMachineType(project, zone, name, req).Context(ctx).Do()
}
func (s *instancesService) SetLabels(ctx context.Context, project, zone, name string, req *compute.InstancesSetLabelsRequest) (*compute.Operation, error) {
	return s.svc.Instances.SetLabels(project, zone, name, req).Context(ctx).Do()
}
func (s *instancesService) SetMetadata(ctx context.Context, project, zone, name string, md *compute.Metadata) (*compute.Operation, error) {
	return s.svc.Instances.SetMetadata(project, zone, name, md).Context(ctx).Do()
}

func New(ctx context.Context, cfg *config.GCPConfig) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, cloud.Wrap(cloud.CodeProviderUnavailable, err, "create compute service")
	}
	return &Client{instances: &instancesService{svc: svc}, project: cfg.Project}, nil
}

func newFromAPI(api instancesAPI, project string) *Client {
	return &Client{instances: api, project: project}
}

func (c *Client) ListInstances(ctx context.Context, zone string) ([]cloud.Instance, error) {
	list, err := c.instances.List(ctx, c.project, zone)
	if err != nil {
		return nil, translateErr(err, "list instances")
	}
	var items []cloud.Instance
	for _, inst := range list.Items {
		items = append(items, toInstance(inst, zone))
	}
	return items, nil
}

func (c *Client) CreateInstance(ctx context.Context, spec cloud.InstanceSpec) (*cloud.Instance, error) {
	if !cloud.ValidResourceName(spec.Name) {
		return nil, cloud.E(cloud.CodeInvalidSpec, "instance name %q violates the GCE naming rules", spec.Name)
	}
	image := spec.Image
	if image == "" {
		image = defaultImage
	}
	inst := &compute.Instance{
		Name:        spec.Name,
		MachineType: machineTypeLink(spec.Region, spec.MachineType),
		Labels:      spec.Labels,
		Disks: []*compute.AttachedDisk{{
			Boot:       true,
			AutoDelete: true,
			Type:       "PERSISTENT",
			InitializeParams: &compute.AttachedDiskInitializeParams{
				SourceImage: image,
			},
		}},
		NetworkInterfaces: []*compute.NetworkInterface{{
			Network: defaultNetwork,
		}},
	}
	if _, err := c.instances.Insert(ctx, c.project, spec.Region, inst); err != nil {
		return nil, translateErr(err, "create instance")
	}
	// The insert operation runs asynchronously on the vendor side; report
	// the instance as pending rather than waiting for it.
	return &cloud.Instance{
		ID:          spec.Name,
		Name:        spec.Name,
		Region:      spec.Region,
		MachineType: spec.MachineType,
		Status:      cloud.StatusPending,
		Labels:      spec.Labels,
	}, nil
}

func (c *Client) ModifyInstance(ctx context.Context, name, zone string, changes cloud.InstanceChanges) (*cloud.Instance, error) {
	current, err := c.instances.Get(ctx, c.project, zone, name)
	if err != nil {
		return nil, translateErr(err, "get instance")
	}
	switch changes.PowerState {
	case "":
	case "stop":
		if _, err := c.instances.Stop(ctx, c.project, zone, name); err != nil {
			return nil, translateErr(err, "stop instance")
		}
	case "start":
		if _, err := c.instances.Start(ctx, c.project, zone, name); err != nil {
			return nil, translateErr(err, "start instance")
		}
	default:
		return nil, cloud.E(cloud.CodeInvalidSpec, "power state must be %q or %q", "start", "stop")
	}
	if changes.MachineType != "" {
		// GCE only resizes stopped instances.
		if current.Status == "RUNNING" && changes.PowerState != "stop" {
			return nil, cloud.E(cloud.CodeUnsupported, "machine type of a running instance cannot be changed")
		}
		req := &compute.InstancesSetMachineTypeRequest{MachineType: machineTypeLink(zone, changes.MachineType)}
		if _, err := c.instances.SetMachineType(ctx, c.project, zone, name, req); err != nil {
			return nil, translateErr(err, "change machine type")
		}
	}
	if len(changes.Labels) > 0 {
		req := &compute.InstancesSetLabelsRequest{
			Labels:           changes.Labels,
			LabelFingerprint: current.LabelFingerprint,
		}
		if _, err := c.instances.SetLabels(ctx, c.project, zone, name, req); err != nil {
			return nil, translateErr(err, "set labels")
		}
	}
	if len(changes.Metadata) > 0 {
		md := mergeMetadata(current.Metadata, changes.Metadata)
		if _, err := c.instances.SetMetadata(ctx, c.project, zone, name, md); err != nil {
			return nil, translateErr(err, "set metadata")
		}
	}
	updated, err := c.instances.Get(ctx, c.project, zone, name)
	if err != nil {
		return nil, translateErr(err, "get instance")
	}
	out := toInstance(updated, zone)
	return &out, nil
}

// DeleteInstance deletes by name. A 404 means the instance is already gone
// and counts as success; names GCE could never have issued are not_found.
func (c *Client) DeleteInstance(ctx context.Context, name, zone string) error {
	if !cloud.ValidResourceName(name) {
		return cloud.E(cloud.CodeNotFound, "instance name %q is not a valid GCE identifier", name)
	}
	if _, err := c.instances.Delete(ctx, c.project, zone, name); err != nil {
		var ge *googleapi.Error
		if errors.As(err, &ge) && ge.Code == 404 {
			return nil
		}
		return translateErr(err, "delete instance")
	}
	return nil
}

// mergeMetadata overlays changed keys onto the instance's current metadata,
// keeping the fingerprint GCE requires for optimistic concurrency.
func mergeMetadata(current *compute.Metadata, changes map[string]string) *compute.Metadata {
	md := &compute.Metadata{}
	seen := map[string]bool{}
	if current != nil {
		md.Fingerprint = current.Fingerprint
		for _, item := range current.Items {
			if v, ok := changes[item.Key]; ok {
				value := v
				md.Items = append(md.Items, &compute.MetadataItems{Key: item.Key, Value: &value})
				seen[item.Key] = true
				continue
			}
			md.Items = append(md.Items, item)
		}
	}
	for k, v := range changes {
		if seen[k] {
			continue
		}
		value := v
		md.Items = append(md.Items, &compute.MetadataItems{Key: k, Value: &value})
	}
	return md
}

// machineTypeLink expands a bare type name into the zonal link the API
// expects; fully-qualified values pass through.
func machineTypeLink(zone, machineType string) string {
	if strings.Contains(machineType, "/") {
		return machineType
	}
	return fmt.Sprintf("zones/%s/machineTypes/%s", zone, machineType)
}

// toInstance translates a GCE instance record into the uniform shape. The
// uniform id is the instance name: it is the key every mutation API uses, so
// an id taken from a listing always round-trips into modify and delete.
func toInstance(in *compute.Instance, zone string) cloud.Instance {
	return cloud.Instance{
		ID:          in.Name,
		Name:        in.Name,
		Region:      zone,
		MachineType: lastSegment(in.MachineType),
		Status:      toStatus(in.Status),
		Labels:      in.Labels,
	}
}

// toStatus folds GCE instance states into the normalized enum. Note that
// GCE reports a stopped instance as TERMINATED; the uniform layer calls
// that stopped, since the instance still exists and can be started.
func toStatus(s string) cloud.Status {
	switch s {
	case "RUNNING":
		return cloud.StatusRunning
	case "PROVISIONING", "STAGING":
		return cloud.StatusPending
	case "STOPPING", "SUSPENDING", "SUSPENDED", "TERMINATED":
		return cloud.StatusStopped
	default:
		return cloud.StatusUnknown
	}
}

func lastSegment(link string) string {
	if idx := strings.LastIndex(link, "/"); idx >= 0 {
		return link[idx+1:]
	}
	return link
}

// translateErr folds googleapi errors into the uniform taxonomy.
func translateErr(err error, op string) error {
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return cloud.Wrap(cloud.CodeProviderUnavailable, err, "%s: compute api unreachable", op)
	}
	switch ge.Code {
	case 404:
		return cloud.Wrap(cloud.CodeNotFound, err, "instance not found")
	case 409:
		return cloud.Wrap(cloud.CodeResourceConflict, err, "a resource with this name already exists")
	case 400, 412:
		return cloud.Wrap(cloud.CodeInvalidSpec, err, "invalid instance specification")
	case 401:
		return cloud.Wrap(cloud.CodeProviderUnavailable, err, "gcp rejected the credentials")
	case 403:
		for _, item := range ge.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
				return cloud.Wrap(cloud.CodeQuotaExceeded, err, "gcp rejected the request for quota reasons")
			}
		}
		return cloud.Wrap(cloud.CodeProviderUnavailable, err, "gcp denied access")
	}
	return cloud.Wrap(cloud.CodeProviderUnavailable, err, "%s failed", op)
}
