package awscli

type listStacksOutput struct {
	StackSummaries []struct {
		StackName         string `json:"StackName"`
		StackStatus       string `json:"StackStatus"`
		StackStatusReason string `json:"StackStatusReason"`
	} `json:"StackSummaries"`
}

type describeStacksOutput struct {
	Stacks []struct {
		StackName         string `json:"StackName"`
		StackStatus       string `json:"StackStatus"`
		StackStatusReason string `json:"StackStatusReason"`
	} `json:"Stacks"`
}

type listBucketsOutput struct {
	Buckets []struct {
		Name string `json:"Name"`
	} `json:"Buckets"`
}

type instance struct {
	InstanceID string `json:"InstanceId"`
	State      struct {
		Name string `json:"Name"`
	} `json:"State"`
	Tags []struct {
		Key   string `json:"Key"`
		Value string `json:"Value"`
	} `json:"Tags"`
}

func (i instance) tags() map[string]string {
	if len(i.Tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(i.Tags))
	for _, t := range i.Tags {
		m[t.Key] = t.Value
	}
	return m
}

type describeInstancesOutput struct {
	Reservations []struct {
		Instances []instance `json:"Instances"`
	} `json:"Reservations"`
}

type listTablesOutput struct {
	TableNames []string `json:"TableNames"`
}

type describeTableOutput struct {
	Table struct {
		TableName   string `json:"TableName"`
		TableStatus string `json:"TableStatus"`
	} `json:"Table"`
}
