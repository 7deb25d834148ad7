package s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// assumeRole returns credentials obtained through STS AssumeRole on top
// of the base config's credential chain.
func assumeRole(base aws.Config, o *options) aws.CredentialsProvider {
	return stscreds.NewAssumeRoleProvider(sts.NewFromConfig(base), o.roleARN, func(ar *stscreds.AssumeRoleOptions) {
		ar.RoleSessionName = o.roleSessionName
		if o.externalID != "" {
			ar.ExternalID = aws.String(o.externalID)
		}
	})
}
