package parse

import "strings"

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an the my this that these those it its is are be please can could would you i we want need
		and or of in on at to for from with by into as using via now new
		delete remove destroy drop terminate rm deploy create run launch start stop kill inspect describe
		stack stacks bucket buckets instance instances table tables container containers
		volume volumes image images resource resources
		named called name id identifier region template file
		cloudformation cfn s3 ec2 dynamodb docker aws
	`) {
		stopWords[w] = struct{}{}
	}
}

func isStopWord(s string) bool {
	_, ok := stopWords[strings.ToLower(s)]
	return ok
}
