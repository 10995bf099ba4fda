// Package aws adapts the uniform cloud operations onto the AWS SDK:
// EC2 for instances, S3 for buckets.
package aws

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
	"github.com/Riley94/multi-cloud-manager/internal/config"
)

// Narrow views of the SDK clients, so tests can substitute fakes.

type ec2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	RunInstances(ctx context.Context, in *ec2.RunInstancesInput, opts ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, opts ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, opts ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, opts ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	ModifyInstanceAttribute(ctx context.Context, in *ec2.ModifyInstanceAttributeInput, opts ...func(*ec2.Options)) (*ec2.ModifyInstanceAttributeOutput, error)
	CreateTags(ctx context.Context, in *ec2.CreateTagsInput, opts ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, opts ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

type s3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, opts ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// Client implements cloud.ComputeService, cloud.BucketService and
// cloud.ImageService against AWS. It holds stateless SDK handles and is safe
// for concurrent use.
type Client struct {
	ec2           ec2API
	s3            s3API
	defaultRegion string
}

func New(ctx context.Context, cfg *config.AWSConfig) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	region := "us-east-1"
	if len(cfg.Regions) > 0 {
		region = cfg.Regions[0]
	}
	opts = append(opts, awsconfig.WithRegion(region))

	ac, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, cloud.Wrap(cloud.CodeProviderUnavailable, err, "load aws credentials")
	}

	ec2c := ec2.NewFromConfig(ac, func(o *ec2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	s3c := s3.NewFromConfig(ac, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{ec2: ec2c, s3: s3c, defaultRegion: region}, nil
}

// newFromAPIs wires explicit API implementations; used by tests.
func newFromAPIs(e ec2API, s s3API, region string) *Client {
	return &Client{ec2: e, s3: s, defaultRegion: region}
}

func regionOpt(region string) func(*ec2.Options) {
	return func(o *ec2.Options) { o.Region = region }
}

func (c *Client) ListInstances(ctx context.Context, region string) ([]cloud.Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{}, regionOpt(region))
	if err != nil {
		return nil, translateErr(err, "list instances")
	}
	var items []cloud.Instance
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			items = append(items, toInstance(inst, region))
		}
	}
	return items, nil
}

func (c *Client) CreateInstance(ctx context.Context, spec cloud.InstanceSpec) (*cloud.Instance, error) {
	if spec.Image == "" {
		return nil, cloud.E(cloud.CodeInvalidSpec, "image id is required")
	}
	tags := []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(spec.Name)}}
	for k, v := range spec.Labels {
		tags = append(tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	out, err := c.ec2.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.Image),
		InstanceType: ec2types.InstanceType(spec.MachineType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         tags,
		}},
	}, regionOpt(spec.Region))
	if err != nil {
		return nil, translateErr(err, "create instance")
	}
	if len(out.Instances) == 0 {
		return nil, cloud.E(cloud.CodeProviderUnavailable, "vendor returned no instance for run request")
	}
	inst := toInstance(out.Instances[0], spec.Region)
	return &inst, nil
}

func (c *Client) ModifyInstance(ctx context.Context, id, region string, changes cloud.InstanceChanges) (*cloud.Instance, error) {
	if len(changes.Metadata) > 0 {
		return nil, cloud.E(cloud.CodeUnsupported, "ec2 instances have no metadata store; use labels")
	}
	switch changes.PowerState {
	case "":
	case "stop":
		if _, err := c.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}}, regionOpt(region)); err != nil {
			return nil, translateErr(err, "stop instance")
		}
	case "start":
		if _, err := c.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}}, regionOpt(region)); err != nil {
			return nil, translateErr(err, "start instance")
		}
	default:
		return nil, cloud.E(cloud.CodeInvalidSpec, "power state must be %q or %q", "start", "stop")
	}
	if changes.MachineType != "" {
		// Rejected by the vendor while the instance is running; surfaces as
		// IncorrectInstanceState which maps to unsupported.
		if _, err := c.ec2.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
			InstanceId:   aws.String(id),
			InstanceType: &ec2types.AttributeValue{Value: aws.String(changes.MachineType)},
		}, regionOpt(region)); err != nil {
			return nil, translateErr(err, "change instance type")
		}
	}
	if len(changes.Labels) > 0 {
		tags := make([]ec2types.Tag, 0, len(changes.Labels))
		for k, v := range changes.Labels {
			tags = append(tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		if _, err := c.ec2.CreateTags(ctx, &ec2.CreateTagsInput{Resources: []string{id}, Tags: tags}, regionOpt(region)); err != nil {
			return nil, translateErr(err, "tag instance")
		}
	}
	return c.getInstance(ctx, id, region)
}

func (c *Client) getInstance(ctx context.Context, id, region string) (*cloud.Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, regionOpt(region))
	if err != nil {
		return nil, translateErr(err, "get instance")
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			v := toInstance(inst, region)
			return &v, nil
		}
	}
	return nil, cloud.E(cloud.CodeNotFound, "instance %s not found in %s", id, region)
}

// DeleteInstance terminates the instance. A vendor not-found is success so
// repeated deletes converge; only malformed identifiers report not_found.
func (c *Client) DeleteInstance(ctx context.Context, id, region string) error {
	_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}}, regionOpt(region))
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "InvalidInstanceID.NotFound" {
			return nil
		}
		return translateErr(err, "delete instance")
	}
	return nil
}

func (c *Client) ListBuckets(ctx context.Context) ([]cloud.Bucket, error) {
	out, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, translateErr(err, "list buckets")
	}
	items := make([]cloud.Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		item := cloud.Bucket{Name: aws.ToString(b.Name)}
		if b.CreationDate != nil {
			item.CreatedAt = *b.CreationDate
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) CreateBucket(ctx context.Context, name string) (*cloud.Bucket, error) {
	if !cloud.ValidBucketName(name) {
		return nil, cloud.E(cloud.CodeInvalidName, "bucket name %q violates the S3 naming rules", name)
	}
	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 must not carry a location constraint.
	if c.defaultRegion != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.defaultRegion),
		}
	}
	if _, err := c.s3.CreateBucket(ctx, in); err != nil {
		return nil, translateErr(err, "create bucket")
	}
	return &cloud.Bucket{Name: name}, nil
}

func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	if _, err := c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return translateErr(err, "delete bucket")
	}
	return nil
}

func (c *Client) ListImages(ctx context.Context, region string) ([]cloud.Image, error) {
	out, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"self", "amazon"},
		Filters: []ec2types.Filter{
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	}, regionOpt(region))
	if err != nil {
		return nil, translateErr(err, "list images")
	}
	items := make([]cloud.Image, 0, len(out.Images))
	for _, img := range out.Images {
		items = append(items, cloud.Image{
			ID:          aws.ToString(img.ImageId),
			Name:        aws.ToString(img.Name),
			Description: aws.ToString(img.Description),
		})
	}
	return items, nil
}

// toInstance translates an EC2 instance record into the uniform shape.
// Vendor responses are never passed through unmodified.
func toInstance(in ec2types.Instance, region string) cloud.Instance {
	inst := cloud.Instance{
		ID:          aws.ToString(in.InstanceId),
		Region:      region,
		MachineType: string(in.InstanceType),
		Status:      cloud.StatusUnknown,
	}
	if in.State != nil {
		inst.Status = toStatus(in.State.Name)
	}
	for _, tag := range in.Tags {
		k, v := aws.ToString(tag.Key), aws.ToString(tag.Value)
		if k == "Name" {
			inst.Name = v
			continue
		}
		if inst.Labels == nil {
			inst.Labels = map[string]string{}
		}
		inst.Labels[k] = v
	}
	return inst
}

func toStatus(s ec2types.InstanceStateName) cloud.Status {
	switch s {
	case ec2types.InstanceStateNameRunning:
		return cloud.StatusRunning
	case ec2types.InstanceStateNamePending:
		return cloud.StatusPending
	case ec2types.InstanceStateNameStopped, ec2types.InstanceStateNameStopping:
		return cloud.StatusStopped
	case ec2types.InstanceStateNameTerminated, ec2types.InstanceStateNameShuttingDown:
		return cloud.StatusTerminated
	default:
		return cloud.StatusUnknown
	}
}

// translateErr folds AWS error codes into the uniform taxonomy.
func translateErr(err error, op string) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return cloud.Wrap(cloud.CodeProviderUnavailable, err, "%s: aws api unreachable", op)
	}
	switch ae.ErrorCode() {
	case "InvalidInstanceID.NotFound":
		return cloud.Wrap(cloud.CodeNotFound, err, "instance not found")
	case "InvalidInstanceID.Malformed":
		return cloud.Wrap(cloud.CodeNotFound, err, "malformed instance id")
	case "InstanceLimitExceeded", "VcpuLimitExceeded", "InsufficientInstanceCapacity":
		return cloud.Wrap(cloud.CodeQuotaExceeded, err, "aws rejected the request for capacity reasons")
	case "InvalidParameterValue", "InvalidParameterCombination", "MissingParameter",
		"InvalidAMIID.NotFound", "InvalidAMIID.Malformed":
		return cloud.Wrap(cloud.CodeInvalidSpec, err, "invalid instance specification")
	case "IncorrectInstanceState", "IncorrectState":
		return cloud.Wrap(cloud.CodeUnsupported, err, "instance state forbids this change")
	case "UnauthorizedOperation", "AuthFailure", "RequestExpired", "OptInRequired":
		return cloud.Wrap(cloud.CodeProviderUnavailable, err, "aws rejected the credentials")
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return cloud.Wrap(cloud.CodeNameTaken, err, "bucket name is already taken")
	case "BucketNotEmpty":
		return cloud.Wrap(cloud.CodeNotEmpty, err, "bucket is not empty")
	case "NoSuchBucket":
		return cloud.Wrap(cloud.CodeNotFound, err, "bucket not found")
	case "InvalidBucketName":
		return cloud.Wrap(cloud.CodeInvalidName, err, "invalid bucket name")
	}
	return cloud.Wrap(cloud.CodeProviderUnavailable, err, "%s failed", op)
}
