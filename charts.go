package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Символы для рисования графиков
var plotChars = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Chart представляет ASCII график
type Chart struct {
	Title    string
	Data     []float64
	Width    int
	Height   int
	MinValue float64
	MaxValue float64
	Color    lipgloss.Color
	ShowAxes bool
	XLabel   string // подпись правого края оси X
}

// NewChart создает новый график
func NewChart(title string, width, height int) *Chart {
	return &Chart{
		Title:    title,
		Width:    width,
		Height:   height,
		Color:    lipgloss.Color("39"), // Синий цвет по умолчанию
		ShowAxes: true,
		Data:     make([]float64, 0),
	}
}

// SetData устанавливает данные для графика
func (c *Chart) SetData(data []float64) {
	c.Data = make([]float64, len(data))
	copy(c.Data, data)
	if len(data) == 0 {
		return
	}

	c.MinValue, c.MaxValue = data[0], data[0]
	for _, v := range data {
		c.MinValue = min(c.MinValue, v)
		c.MaxValue = max(c.MaxValue, v)
	}

	// Небольшой отступ для лучшей визуализации
	span := c.MaxValue - c.MinValue
	if span == 0 {
		span = 1
	}
	c.MinValue -= span * 0.1
	c.MaxValue += span * 0.1
}

// Render рендерит график в строку
func (c *Chart) Render() string {
	if len(c.Data) == 0 {
		return c.renderEmpty()
	}

	var lines []string
	if c.Title != "" {
		titleStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(c.Color).
			Align(lipgloss.Center)
		lines = append(lines, titleStyle.Width(c.Width).Render(c.Title))
	}
	lines = append(lines, c.renderChart()...)
	if c.ShowAxes {
		lines = append(lines, c.renderAxes()...)
	}
	return strings.Join(lines, "\n")
}

// renderChart рендерит основную часть графика
func (c *Chart) renderChart() []string {
	chartHeight := c.Height
	if c.ShowAxes {
		chartHeight -= 2 // Место для осей
	}
	if chartHeight < 2 {
		chartHeight = 2
	}

	dataWidth := c.Width
	if c.ShowAxes {
		dataWidth -= 8 // Место для Y-оси
	}
	chartData := resample(c.Data, dataWidth)
	axisStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	plotStyle := lipgloss.NewStyle().Foreground(c.Color)

	lines := make([]string, chartHeight)
	for row := 0; row < chartHeight; row++ {
		var line strings.Builder
		if c.ShowAxes {
			yValue := c.MaxValue - (float64(row)/float64(chartHeight-1))*(c.MaxValue-c.MinValue)
			line.WriteString(axisStyle.Render(fmt.Sprintf("%7.0f│", yValue)))
		}

		for _, value := range chartData {
			normalized := 0.5
			if c.MaxValue != c.MinValue {
				normalized = (value - c.MinValue) / (c.MaxValue - c.MinValue)
			}

			// Высота столбца относительно текущей строки
			targetHeight := normalized * float64(chartHeight)
			fromBottom := float64(chartHeight - 1 - row)

			char := " "
			if targetHeight > fromBottom {
				intensity := math.Min(targetHeight-fromBottom, 1.0)
				idx := min(int(intensity*float64(len(plotChars)-1)), len(plotChars)-1)
				char = plotChars[idx]
			}
			line.WriteString(plotStyle.Render(char))
		}
		lines[row] = line.String()
	}
	return lines
}

// renderAxes рендерит оси координат
func (c *Chart) renderAxes() []string {
	axisStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	lines := []string{axisStyle.Render("       └" + strings.Repeat("─", max(c.Width-8, 0)))}

	right := c.XLabel
	if right == "" {
		right = fmt.Sprintf("%d", len(c.Data)-1)
	}
	if len(c.Data) > 1 {
		pad := max(c.Width-9-len(right), 1)
		lines = append(lines, axisStyle.Render("        0"+strings.Repeat(" ", pad)+right))
	}
	return lines
}

// renderEmpty рендерит пустой график
func (c *Chart) renderEmpty() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(c.Width).
		Height(c.Height)
	return style.Render(c.Title + "\nНет данных для отображения")
}

// NewCapacityChart создает график оставшейся емкости фазы
func NewCapacityChart(phase string, width, height int) *Chart {
	chart := NewChart(fmt.Sprintf("🔋 %s: емкость (мВт·ч)", phase), width, height)
	chart.Color = lipgloss.Color("39")
	return chart
}

// NewDrainChart создает график скорости разряда; среднее выносится в заголовок
func NewDrainChart(phase string, mean float64, width, height int) *Chart {
	chart := NewChart(fmt.Sprintf("📉 %s: разряд (мВт), среднее %.0f", phase, mean), width, height)
	chart.Color = lipgloss.Color("196")
	return chart
}

// renderBatteryCharts рисует емкость и скорость разряда обеих фаз
func renderBatteryCharts(res ComparisonResult, width, height int) string {
	var blocks []string
	for _, p := range []struct {
		name  string
		phase BatteryPhase
	}{{"baseline", res.BaselineBattery}, {"test", res.TestBattery}} {
		capacity := NewCapacityChart(p.name, width, height)
		capacity.SetData(p.phase.Trace.Capacity)
		if n := len(p.phase.Trace.Elapsed); n > 0 {
			capacity.XLabel = formatSeconds(p.phase.Trace.Elapsed[n-1])
		}

		drain := NewDrainChart(p.name, p.phase.AvgMW, width, height)
		drain.SetData(p.phase.Trace.Deltas)
		if last := p.phase.Trace.Offset + len(p.phase.Trace.Deltas) - 1; last >= 0 && last < len(p.phase.Trace.Elapsed) {
			drain.XLabel = formatSeconds(p.phase.Trace.Elapsed[last])
		}

		blocks = append(blocks, capacity.Render(), drain.Render())
	}
	return strings.Join(blocks, "\n\n")
}

// renderPowerSparklines рисует спарклайн на каждый счетчик SRUMUTIL
func renderPowerSparklines(res ComparisonResult, width int) string {
	if len(res.Header) == 0 {
		return ""
	}
	nameWidth := 0
	for _, h := range res.Header {
		nameWidth = max(nameWidth, len(h))
	}
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sparkWidth := max(width-nameWidth-12, 10)

	var lines []string
	for _, p := range []struct {
		name  string
		phase PowerPhase
		color lipgloss.Color
	}{{"baseline", res.BaselinePower, lipgloss.Color("39")}, {"test", res.TestPower, lipgloss.Color("208")}} {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Render("⚡ "+p.name))
		for i, h := range res.Header {
			spark := NewSparkline(sparkWidth)
			spark.Color = p.color
			spark.SetData(column(p.phase.Rows, i))
			lines = append(lines, labelStyle.Render(fmt.Sprintf("%-*s ", nameWidth, h))+spark.Render())
		}
	}
	return strings.Join(lines, "\n")
}

// formatSeconds форматирует длительность в секундах для подписи оси
func formatSeconds(s float64) string {
	if s < 60 {
		return fmt.Sprintf("%.0fс", s)
	}
	return fmt.Sprintf("%.0fмин", s/60)
}

// Sparkline создает мини-график (спарклайн)
type Sparkline struct {
	Data  []float64
	Width int
	Color lipgloss.Color
}

// NewSparkline создает новый спарклайн
func NewSparkline(width int) *Sparkline {
	return &Sparkline{
		Width: width,
		Color: lipgloss.Color("39"),
		Data:  make([]float64, 0),
	}
}

// SetData устанавливает данные для спарклайна
func (s *Sparkline) SetData(data []float64) {
	s.Data = make([]float64, len(data))
	copy(s.Data, data)
}

// Render рендерит спарклайн
func (s *Sparkline) Render() string {
	if s.Width <= 0 {
		return ""
	}
	if len(s.Data) == 0 {
		return strings.Repeat("─", s.Width)
	}

	data := resample(s.Data, s.Width)
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}

	style := lipgloss.NewStyle().Foreground(s.Color)
	var b strings.Builder
	for _, value := range data {
		normalized := 0.5
		if maxVal != minVal {
			normalized = (value - minVal) / (maxVal - minVal)
		}
		idx := max(min(int(normalized*float64(len(plotChars)-1)), len(plotChars)-1), 0)
		b.WriteString(style.Render(plotChars[idx]))
	}
	return b.String()
}

// resample подгоняет ряд под ширину: растягивает линейной интерполяцией
// или сжимает усреднением соседних значений.
func resample(data []float64, width int) []float64 {
	if width <= 0 {
		return nil
	}
	if len(data) == 0 {
		return make([]float64, width)
	}
	if len(data) == width {
		return data
	}

	result := make([]float64, width)
	if len(data) < width {
		if width == 1 || len(data) == 1 {
			for i := range result {
				result[i] = data[0]
			}
			return result
		}
		for i := 0; i < width; i++ {
			src := float64(i) * float64(len(data)-1) / float64(width-1)
			left := int(src)
			if left+1 >= len(data) {
				result[i] = data[len(data)-1]
				continue
			}
			t := src - float64(left)
			result[i] = data[left]*(1-t) + data[left+1]*t
		}
		return result
	}

	step := float64(len(data)) / float64(width)
	for i := 0; i < width; i++ {
		start := int(float64(i) * step)
		end := min(int(float64(i+1)*step), len(data))
		sum, count := 0.0, 0
		for j := start; j < end; j++ {
			sum += data[j]
			count++
		}
		if count > 0 {
			result[i] = sum / float64(count)
		}
	}
	return result
}
