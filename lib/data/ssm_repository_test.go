package data

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func stringPtr(v string) *string {
	return &v
}

type MockSSMClient struct {
	TestSuccess bool
}

func (m *MockSSMClient) GetParametersByPath(ctx context.Context, input *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if !m.TestSuccess {
		return nil, errors.New("error in GetParametersByPath")
	}
	return &ssm.GetParametersByPathOutput{
		Parameters: []types.Parameter{
			{
				Name:  stringPtr("/solarflow/DATABASE_NAME"),
				Value: stringPtr("workflow"),
			},
			{
				Name:  stringPtr("/solarflow/DATABASE_PORT"),
				Value: stringPtr("5432"),
			},
		},
	}, nil
}

func newSSMDao(testSuccess bool) SSMRepository {
	return &SSMDao{
		SSM:    &MockSSMClient{TestSuccess: testSuccess},
		Logger: logrus.New(),
	}
}

func Test_GetParameters_Success(t *testing.T) {
	//Arrange
	repository := newSSMDao(true)

	//Act
	actual, err := repository.GetParameters()

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, "workflow", actual["/solarflow/DATABASE_NAME"])
	assert.Equal(t, "5432", actual["/solarflow/DATABASE_PORT"])
}

func Test_GetParameters_Failure(t *testing.T) {
	//Arrange
	repository := newSSMDao(false)

	//Act
	_, err := repository.GetParameters()

	//Assert
	assert.Equal(t, "error in GetParametersByPath", err.Error())
}
