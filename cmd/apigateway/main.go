package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/boogy/shc-warden/pkg/handler"
)

var bootstrap *handler.Bootstrap

func init() {
	var err error
	bootstrap, err = handler.NewBootstrap()
	if err != nil {
		panic(err)
	}
}

func main() {
	// Create the API Gateway handler
	apiHandler := handler.NewAwsApiGatewayFromBootstrap(bootstrap)

	// Start the Lambda function
	lambda.Start(apiHandler.Handler)
}
