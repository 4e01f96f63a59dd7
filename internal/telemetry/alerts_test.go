package telemetry

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

const alertsPath = "../../deploy/prometheus/alerts.yml"

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertsConfig struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

func loadAlerts(t *testing.T) alertsConfig {
	t.Helper()
	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
	}
	var config alertsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Invalid YAML in alerts.yml: %v", err)
	}
	if len(config.Groups) == 0 {
		t.Fatal("alerts.yml has no groups")
	}
	return config
}

// TestCriticalAlertsPresent verifies critical alerts are defined.
func TestCriticalAlertsPresent(t *testing.T) {
	config := loadAlerts(t)

	defined := map[string]string{}
	for _, group := range config.Groups {
		for _, rule := range group.Rules {
			defined[rule.Alert] = rule.Labels["severity"]
		}
	}
	for _, name := range []string{"HighAPIErrorRate", "FilterDataLoadFailures", "DatabaseDown"} {
		if defined[name] != "critical" {
			t.Errorf("Critical alert '%s' missing or not critical", name)
		}
	}
}

// TestAlertLabels verifies alerts have required labels.
func TestAlertLabels(t *testing.T) {
	config := loadAlerts(t)

	for _, group := range config.Groups {
		for _, rule := range group.Rules {
			if rule.Alert == "" {
				continue
			}
			if _, ok := rule.Labels["severity"]; !ok {
				t.Errorf("Alert '%s' missing 'severity' label", rule.Alert)
			}
			if _, ok := rule.Annotations["summary"]; !ok {
				t.Errorf("Alert '%s' missing 'summary' annotation", rule.Alert)
			}
		}
	}
}

var metricRef = regexp.MustCompile(`playlistgen_[a-z_]+`)

// TestAlertMetricsExist verifies every metric referenced by an alert is
// declared by this package.
func TestAlertMetricsExist(t *testing.T) {
	config := loadAlerts(t)

	collectors := []prometheus.Collector{
		APIRequestDuration, APIRequestsTotal, APIActiveConnections,
		CriteriaEvaluationsTotal, CriteriaEvaluationDuration, FilterDataLoadsTotal, LabelCountCacheTotal,
		DatabaseQueryDuration, DatabaseErrorsTotal, DatabaseConnectionsActive,
	}
	declared := map[string]bool{}
	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 1)
		go func() {
			c.Describe(ch)
			close(ch)
		}()
		for desc := range ch {
			if name := metricRef.FindString(desc.String()); name != "" {
				declared[name] = true
			}
		}
	}

	for _, group := range config.Groups {
		for _, rule := range group.Rules {
			for _, ref := range metricRef.FindAllString(rule.Expr, -1) {
				name := strings.TrimSuffix(ref, "_bucket")
				if !declared[name] {
					t.Errorf("Alert '%s' references undeclared metric %s", rule.Alert, ref)
				}
			}
		}
	}
}
