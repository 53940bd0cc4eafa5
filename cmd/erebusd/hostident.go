// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/go-logr/logr"
)

// hostIdentityTimeout bounds the whole IMDS round trip at startup: off
// EC2 there is nothing listening on the link-local address, and the
// daemon must not hang waiting for it.
const hostIdentityTimeout = 3 * time.Second

// resolveHostIdentity best-effort resolves the region and account id of
// the EC2 instance this process is running on via the instance metadata
// service. Both come back empty, with the error logged and swallowed, on
// any non-EC2 host; this enrichment is optional the way
// pkg/performance/manager.go's NodeName/ClusterName resolution is.
func resolveHostIdentity(log logr.Logger) (region, accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), hostIdentityTimeout)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.V(1).Info("skipping host-identity resolution", "reason", err.Error())
		return "", ""
	}
	client := imds.NewFromConfig(cfg)

	if resp, err := client.GetRegion(ctx, &imds.GetRegionInput{}); err != nil {
		log.V(1).Info("not running on EC2, skipping host-identity resolution", "reason", err.Error())
		return "", ""
	} else {
		region = resp.Region
	}

	doc, err := client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		log.V(1).Info("could not fetch instance identity document", "reason", err.Error())
		return region, ""
	}
	return region, doc.AccountID
}
