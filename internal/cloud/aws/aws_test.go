package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
)

// apiErr satisfies smithy.APIError with a fixed code.
type apiErr struct{ code string }

func (e *apiErr) Error() string                 { return e.code }
func (e *apiErr) ErrorCode() string             { return e.code }
func (e *apiErr) ErrorMessage() string          { return e.code }
func (e *apiErr) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var _ smithy.APIError = (*apiErr)(nil)

// fakeEC2 answers each call from canned fields.
type fakeEC2 struct {
	describeOut *ec2.DescribeInstancesOutput
	describeErr error
	runOut      *ec2.RunInstancesOutput
	runErr      error
	termErr     error
	termCalls   int
	stopErr     error
	startErr    error
	modifyErr   error
	tagsErr     error
	imagesOut   *ec2.DescribeImagesOutput
	imagesErr   error
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if f.describeOut != nil {
		return f.describeOut, nil
	}
	return &ec2.DescribeInstancesOutput{}, nil
}
func (f *fakeEC2) RunInstances(ctx context.Context, in *ec2.RunInstancesInput, opts ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	return f.runOut, f.runErr
}
func (f *fakeEC2) TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, opts ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.termCalls++
	if f.termErr != nil {
		return nil, f.termErr
	}
	return &ec2.TerminateInstancesOutput{}, nil
}
func (f *fakeEC2) StopInstances(ctx context.Context, in *ec2.StopInstancesInput, opts ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return &ec2.StopInstancesOutput{}, nil
}
func (f *fakeEC2) StartInstances(ctx context.Context, in *ec2.StartInstancesInput, opts ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &ec2.StartInstancesOutput{}, nil
}
func (f *fakeEC2) ModifyInstanceAttribute(ctx context.Context, in *ec2.ModifyInstanceAttributeInput, opts ...func(*ec2.Options)) (*ec2.ModifyInstanceAttributeOutput, error) {
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	return &ec2.ModifyInstanceAttributeOutput{}, nil
}
func (f *fakeEC2) CreateTags(ctx context.Context, in *ec2.CreateTagsInput, opts ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return &ec2.CreateTagsOutput{}, nil
}
func (f *fakeEC2) DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, opts ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	if f.imagesOut != nil {
		return f.imagesOut, nil
	}
	return &ec2.DescribeImagesOutput{}, nil
}

type fakeS3 struct {
	listOut   *s3.ListBucketsOutput
	listErr   error
	createErr error
	deleteErr error
}

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listOut != nil {
		return f.listOut, nil
	}
	return &s3.ListBucketsOutput{}, nil
}
func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3.CreateBucketOutput{}, nil
}
func (f *fakeS3) DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, opts ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteBucketOutput{}, nil
}

func ec2Instance(id, name string, state ec2types.InstanceStateName) ec2types.Instance {
	return ec2types.Instance{
		InstanceId:   aws.String(id),
		InstanceType: ec2types.InstanceTypeT2Micro,
		State:        &ec2types.InstanceState{Name: state},
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String(name)},
			{Key: aws.String("env"), Value: aws.String("test")},
		},
	}
}

func TestListInstancesTranslation(t *testing.T) {
	fe := &fakeEC2{describeOut: &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{
			ec2Instance("i-1", "web-1", ec2types.InstanceStateNameRunning),
			ec2Instance("i-2", "web-2", ec2types.InstanceStateNameStopped),
			ec2Instance("i-3", "web-3", ec2types.InstanceStateNameShuttingDown),
		}}},
	}}
	c := newFromAPIs(fe, &fakeS3{}, "us-east-1")
	items, err := c.ListInstances(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, cloud.StatusRunning, items[0].Status)
	assert.Equal(t, cloud.StatusStopped, items[1].Status)
	assert.Equal(t, cloud.StatusTerminated, items[2].Status)
	assert.Equal(t, "web-1", items[0].Name)
	assert.Equal(t, "t2.micro", items[0].MachineType)
	assert.Equal(t, map[string]string{"env": "test"}, items[0].Labels)
	assert.NotContains(t, items[0].Labels, "Name", "the Name tag becomes the instance name")
}

func TestCreateInstanceRequiresImage(t *testing.T) {
	c := newFromAPIs(&fakeEC2{}, &fakeS3{}, "us-east-1")
	_, err := c.CreateInstance(context.Background(), cloud.InstanceSpec{Name: "web-1", Region: "us-east-1", MachineType: "t2.micro"})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeInvalidSpec, cloud.CodeOf(err))
}

func TestCreateInstancePending(t *testing.T) {
	fe := &fakeEC2{runOut: &ec2.RunInstancesOutput{Instances: []ec2types.Instance{
		ec2Instance("i-new", "web-1", ec2types.InstanceStateNamePending),
	}}}
	c := newFromAPIs(fe, &fakeS3{}, "us-east-1")
	inst, err := c.CreateInstance(context.Background(), cloud.InstanceSpec{
		Name: "web-1", Region: "us-east-1", MachineType: "t2.micro", Image: "ami-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "i-new", inst.ID)
	assert.Equal(t, cloud.StatusPending, inst.Status)
}

func TestDeleteInstanceIdempotent(t *testing.T) {
	fe := &fakeEC2{termErr: &apiErr{code: "InvalidInstanceID.NotFound"}}
	c := newFromAPIs(fe, &fakeS3{}, "us-east-1")
	require.NoError(t, c.DeleteInstance(context.Background(), "i-gone", "us-east-1"))
	require.NoError(t, c.DeleteInstance(context.Background(), "i-gone", "us-east-1"))
	assert.Equal(t, 2, fe.termCalls)
}

func TestDeleteInstanceMalformed(t *testing.T) {
	fe := &fakeEC2{termErr: &apiErr{code: "InvalidInstanceID.Malformed"}}
	c := newFromAPIs(fe, &fakeS3{}, "us-east-1")
	err := c.DeleteInstance(context.Background(), "not-an-id", "us-east-1")
	require.Error(t, err)
	assert.Equal(t, cloud.CodeNotFound, cloud.CodeOf(err))
}

func TestModifyInstanceRunningResize(t *testing.T) {
	fe := &fakeEC2{modifyErr: &apiErr{code: "IncorrectInstanceState"}}
	c := newFromAPIs(fe, &fakeS3{}, "us-east-1")
	_, err := c.ModifyInstance(context.Background(), "i-1", "us-east-1", cloud.InstanceChanges{MachineType: "t2.large"})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeUnsupported, cloud.CodeOf(err))
}

func TestModifyInstanceMetadataUnsupported(t *testing.T) {
	c := newFromAPIs(&fakeEC2{}, &fakeS3{}, "us-east-1")
	_, err := c.ModifyInstance(context.Background(), "i-1", "us-east-1", cloud.InstanceChanges{
		Metadata: map[string]string{"startup-script": "x"},
	})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeUnsupported, cloud.CodeOf(err))
}

func TestModifyInstanceBadPowerState(t *testing.T) {
	c := newFromAPIs(&fakeEC2{}, &fakeS3{}, "us-east-1")
	_, err := c.ModifyInstance(context.Background(), "i-1", "us-east-1", cloud.InstanceChanges{PowerState: "reboot"})
	require.Error(t, err)
	assert.Equal(t, cloud.CodeInvalidSpec, cloud.CodeOf(err))
}

func TestTranslateErrTaxonomy(t *testing.T) {
	cases := []struct {
		vendor string
		want   cloud.Code
	}{
		{"InstanceLimitExceeded", cloud.CodeQuotaExceeded},
		{"InsufficientInstanceCapacity", cloud.CodeQuotaExceeded},
		{"InvalidParameterValue", cloud.CodeInvalidSpec},
		{"InvalidAMIID.NotFound", cloud.CodeInvalidSpec},
		{"AuthFailure", cloud.CodeProviderUnavailable},
		{"BucketAlreadyExists", cloud.CodeNameTaken},
		{"BucketNotEmpty", cloud.CodeNotEmpty},
		{"NoSuchBucket", cloud.CodeNotFound},
		{"SomethingNovel", cloud.CodeProviderUnavailable},
	}
	for _, c := range cases {
		err := translateErr(&apiErr{code: c.vendor}, "op")
		assert.Equal(t, c.want, cloud.CodeOf(err), "vendor code %s", c.vendor)
	}
}

func TestCreateBucketNameRules(t *testing.T) {
	c := newFromAPIs(&fakeEC2{}, &fakeS3{}, "us-east-1")
	for _, name := range []string{"My-Bucket", "ab", "x..y", "-abc"} {
		_, err := c.CreateBucket(context.Background(), name)
		require.Error(t, err, "name %q", name)
		assert.Equal(t, cloud.CodeInvalidName, cloud.CodeOf(err))
	}
	b, err := c.CreateBucket(context.Background(), "valid-bucket-name")
	require.NoError(t, err)
	assert.Equal(t, "valid-bucket-name", b.Name)
}

func TestCreateBucketTaken(t *testing.T) {
	fs := &fakeS3{createErr: &apiErr{code: "BucketAlreadyExists"}}
	c := newFromAPIs(&fakeEC2{}, fs, "us-east-1")
	_, err := c.CreateBucket(context.Background(), "taken-name")
	require.Error(t, err)
	assert.Equal(t, cloud.CodeNameTaken, cloud.CodeOf(err))
}

func TestListBuckets(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fs := &fakeS3{listOut: &s3.ListBucketsOutput{Buckets: []s3types.Bucket{
		{Name: aws.String("alpha"), CreationDate: &created},
		{Name: aws.String("beta")},
	}}}
	c := newFromAPIs(&fakeEC2{}, fs, "us-east-1")
	items, err := c.ListBuckets(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "alpha", items[0].Name)
	assert.Equal(t, created, items[0].CreatedAt)
}

func TestListImages(t *testing.T) {
	fe := &fakeEC2{imagesOut: &ec2.DescribeImagesOutput{Images: []ec2types.Image{
		{ImageId: aws.String("ami-1"), Name: aws.String("base"), Description: aws.String("base image")},
	}}}
	c := newFromAPIs(fe, &fakeS3{}, "us-east-1")
	items, err := c.ListImages(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ami-1", items[0].ID)
}
