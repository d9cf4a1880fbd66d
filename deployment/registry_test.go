package deployment_test

import (
	. "github.com/ashokrj/supplyd/deployment"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	It("should resolve a registered deployment by id", func() {
		registry := NewRegistry()

		registry.Register(DeploymentInfo{ID: "ldr-1", ClassName: "com.example.Widget"})

		info, err := registry.Load("ldr-1")

		Expect(err).Should(BeNil())
		Expect(info.ClassName).Should(Equal("com.example.Widget"))
	})

	It("should return EDeploymentNotFound for an unregistered id", func() {
		registry := NewRegistry()

		_, err := registry.Load("missing")

		Expect(err).Should(Equal(EDeploymentNotFound))
	})
})
