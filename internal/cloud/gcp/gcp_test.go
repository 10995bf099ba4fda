package gcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
)

// fakeInstances keeps instances by name and mimics the compute API's error
// shapes.
type fakeInstances struct {
	instances map[string]*compute.Instance
	listErr   error
	insertErr error
	deleteErr error
	stopErr   error
	calls     []string
}

func newFake(instances ...*compute.Instance) *fakeInstances {
	f := &fakeInstances{instances: map[string]*compute.Instance{}}
	for _, in := range instances {
		f.instances[in.Name] = in
	}
	return f
}

func notFound() error { return &googleapi.Error{Code: 404, Message: "not found"} }

func (f *fakeInstances) List(ctx context.Context, project, zone string) (*compute.InstanceList, error) {
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &compute.InstanceList{}
	for _, in := range f.instances {
		out.Items = append(out.Items, in)
	}
	return out, nil
}
func (f *fakeInstances) Get(ctx context.Context, project, zone, name string) (*compute.Instance, error) {
	f.calls = append(f.calls, "get")
	in, ok := f.instances[name]
	if !ok {
		return nil, notFound()
	}
	return in, nil
}
func (f *fakeInstances) Insert(ctx context.Context, project, zone string, inst *compute.Instance) (*compute.Operation, error) {
	f.calls = append(f.calls, "insert")
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if _, ok := f.instances[inst.Name]; ok {
		return nil, &googleapi.Error{Code: 409, Message: "already exists"}
	}
	inst.Status = "PROVISIONING"
	f.instances[inst.Name] = inst
	return &compute.Operation{TargetId: 12345}, nil
}
func (f *fakeInstances) Delete(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if _, ok := f.instances[name]; !ok {
		return nil, notFound()
	}
	delete(f.instances, name)
	return &compute.Operation{}, nil
}
func (f *fakeInstances) Stop(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	f.calls = append(f.calls, "stop")
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	in, ok := f.instances[name]
	if !ok {
		return nil, notFound()
	}
	in.Status = "TERMINATED"
	return &compute.Operation{}, nil
}
func (f *fakeInstances) Start(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	f.calls = append(f.calls, "start")
	in, ok := f.instances[name]
	if !ok {
		return nil, notFound()
	}
	in.Status = "RUNNING"
	return &compute.Operation{}, nil
}
func (f *fakeInstances) SetMachineType(ctx context.Context, project, zone, name string, req *compute.InstancesSetMachineTypeRequest) (*compute.Operation, error) {
	f.calls = append(f.calls, "setMachineType")
	in, ok := f.instances[name]
	if !ok {
		return nil, notFound()
	}
	in.MachineType = req.MachineType
	return &compute.Operation{}, nil
}
func (f *fakeInstances) SetLabels(ctx context.Context, project, zone, name string, req *compute.InstancesSetLabelsRequest) (*compute.Operation, error) {
	f.calls = append(f.calls, "setLabels")
	in, ok := f.instances[name]
	if !ok {
		return nil, notFound()
	}
	in.Labels = req.Labels
	return &compute.Operation{}, nil
}
func (f *fakeInstances) SetMetadata(ctx context.Context, project, zone, name string, md *compute.Metadata) (*compute.Operation, error) {
	f.calls = append(f.calls, "setMetadata")
	in, ok := f.instances[name]
	if !ok {
		return nil, notFound()
	}
	in.Metadata = md
	return &compute.Operation{}, nil
}

func gceInstance(name, status string) *compute.Instance {
	return &compute.Instance{
		Name:        name,
		Id:          987,
		Status:      status,
		MachineType: "https://compute.googleapis.com/compute/v1/projects/p/zones/us-central1-a/machineTypes/n1-standard-1",
	}
}

func TestListInstancesTranslation(t *testing.T) {
	c := newFromAPI(newFake(gceInstance("web-1", "RUNNING"), gceInstance("web-2", "TERMINATED")), "proj")
	items, err := c.ListInstances(context.Background(), "us-central1-a")
	require.NoError(t, err)
	require.Len(t, items, 2)
	byName := map[string]cloud.Instance{}
	for _, it := range items {
		byName[it.Name] = it
	}
	assert.Equal(t, cloud.StatusRunning, byName["web-1"].Status)
	// GCE reports stopped instances as TERMINATED
	assert.Equal(t, cloud.StatusStopped, byName["web-2"].Status)
	assert.Equal(t, "n1-standard-1", byName["web-1"].MachineType)
	assert.Equal(t, "us-central1-a", byName["web-1"].Region)
	// the uniform id is the name so listed ids feed straight into mutations
	assert.Equal(t, "web-1", byName["web-1"].ID)
}

func TestListedIDRoundTripsIntoDelete(t *testing.T) {
	f := newFake(gceInstance("web-1", "RUNNING"))
	c := newFromAPI(f, "proj")
	items, err := c.ListInstances(context.Background(), "us-central1-a")
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, c.DeleteInstance(context.Background(), items[0].ID, "us-central1-a"))

	items, err = c.ListInstances(context.Background(), "us-central1-a")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateInstancePendingWithoutWaiting(t *testing.T) {
	c := newFromAPI(newFake(), "proj")
	inst, err := c.CreateInstance(context.Background(), cloud.InstanceSpec{
		Name: "web-1", Region: "us-central1-a", MachineType: "n1-standard-1",
	})
	require.NoError(t, err)
	assert.Equal(t, cloud.StatusPending, inst.Status)
	assert.Equal(t, "web-1", inst.ID)
}

func TestCreateInstanceBadName(t *testing.T) {
	c := newFromAPI(newFake(), "proj")
	_, err := c.CreateInstance(context.Background(), cloud.InstanceSpec{
		Name: "Web_1", Region: "us-central1-a", MachineType: "n1-standard-1",
	})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeInvalidSpec, cloud.CodeOf(err))
}

func TestCreateInstanceConflict(t *testing.T) {
	c := newFromAPI(newFake(gceInstance("web-1", "RUNNING")), "proj")
	_, err := c.CreateInstance(context.Background(), cloud.InstanceSpec{
		Name: "web-1", Region: "us-central1-a", MachineType: "n1-standard-1",
	})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeResourceConflict, cloud.CodeOf(err))
}

func TestDeleteInstanceIdempotent(t *testing.T) {
	f := newFake(gceInstance("web-1", "RUNNING"))
	c := newFromAPI(f, "proj")
	require.NoError(t, c.DeleteInstance(context.Background(), "web-1", "us-central1-a"))
	// second delete hits a vendor 404 which still counts as success
	require.NoError(t, c.DeleteInstance(context.Background(), "web-1", "us-central1-a"))
}

func TestDeleteInstanceBadIdentifier(t *testing.T) {
	c := newFromAPI(newFake(), "proj")
	err := c.DeleteInstance(context.Background(), "Not_A_Name", "us-central1-a")
	require.Error(t, err)
	assert.Equal(t, cloud.CodeNotFound, cloud.CodeOf(err))
}

func TestModifyRunningResizeUnsupported(t *testing.T) {
	c := newFromAPI(newFake(gceInstance("web-1", "RUNNING")), "proj")
	_, err := c.ModifyInstance(context.Background(), "web-1", "us-central1-a", cloud.InstanceChanges{MachineType: "n1-standard-2"})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeUnsupported, cloud.CodeOf(err))
}

func TestModifyStopThenResize(t *testing.T) {
	f := newFake(gceInstance("web-1", "RUNNING"))
	c := newFromAPI(f, "proj")
	inst, err := c.ModifyInstance(context.Background(), "web-1", "us-central1-a", cloud.InstanceChanges{
		PowerState:  "stop",
		MachineType: "n1-standard-2",
	})
	require.NoError(t, err)
	assert.Equal(t, cloud.StatusStopped, inst.Status)
	assert.Equal(t, "n1-standard-2", inst.MachineType)
	assert.Contains(t, f.calls, "stop")
	assert.Contains(t, f.calls, "setMachineType")
}

func TestModifyLabels(t *testing.T) {
	in := gceInstance("web-1", "RUNNING")
	in.LabelFingerprint = "fp-1"
	c := newFromAPI(newFake(in), "proj")
	inst, err := c.ModifyInstance(context.Background(), "web-1", "us-central1-a", cloud.InstanceChanges{
		Labels: map[string]string{"team": "infra"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "infra"}, inst.Labels)
}

func TestModifyMetadataMerges(t *testing.T) {
	in := gceInstance("web-1", "RUNNING")
	existing := "old"
	in.Metadata = &compute.Metadata{
		Fingerprint: "md-fp",
		Items: []*compute.MetadataItems{
			{Key: "startup-script", Value: &existing},
			{Key: "keep-me", Value: &existing},
		},
	}
	f := newFake(in)
	c := newFromAPI(f, "proj")
	_, err := c.ModifyInstance(context.Background(), "web-1", "us-central1-a", cloud.InstanceChanges{
		Metadata: map[string]string{"startup-script": "new", "extra": "added"},
	})
	require.NoError(t, err)
	assert.Contains(t, f.calls, "setMetadata")

	md := f.instances["web-1"].Metadata
	require.NotNil(t, md)
	assert.Equal(t, "md-fp", md.Fingerprint)
	got := map[string]string{}
	for _, item := range md.Items {
		got[item.Key] = *item.Value
	}
	assert.Equal(t, map[string]string{"startup-script": "new", "keep-me": "old", "extra": "added"}, got)
}

func TestModifyMissingInstance(t *testing.T) {
	c := newFromAPI(newFake(), "proj")
	_, err := c.ModifyInstance(context.Background(), "web-9", "us-central1-a", cloud.InstanceChanges{PowerState: "start"})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeNotFound, cloud.CodeOf(err))
}

func TestTranslateErrQuota(t *testing.T) {
	err := translateErr(&googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
	}, "create instance")
	assert.Equal(t, cloud.CodeQuotaExceeded, cloud.CodeOf(err))

	err = translateErr(&googleapi.Error{Code: 403}, "create instance")
	assert.Equal(t, cloud.CodeProviderUnavailable, cloud.CodeOf(err))
}

func TestMachineTypeLink(t *testing.T) {
	assert.Equal(t, "zones/us-central1-a/machineTypes/n1-standard-1", machineTypeLink("us-central1-a", "n1-standard-1"))
	full := "projects/p/zones/z/machineTypes/custom-2-4096"
	assert.Equal(t, full, machineTypeLink("us-central1-a", full))
}
